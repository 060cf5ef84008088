package conn

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/armb-farm/armb/internal/armberr"
	"github.com/armb-farm/armb/internal/cmn/cos"
	"github.com/armb-farm/armb/internal/cmn/debug"
	"github.com/armb-farm/armb/internal/cmn/mono"
	"github.com/armb-farm/armb/internal/cmn/nlog"
	"github.com/armb-farm/armb/internal/wire"
)

// Connection is a single-threaded ARMB stream over a TCP socket. It
// owns a head-first outbound queue and a tail-first inbound queue of
// frames and is driven entirely by repeated calls to Update from an
// external readiness loop (see Poll); it never spawns a goroutine of its
// own. Send only enqueues. Update reads or writes only in a direction the
// caller reports ready, but through ordinary net.Conn Read and Write
// calls: a read that goes past the bytes already buffered, or a write
// larger than the socket accepts at once, waits for the peer.
//
// Grounded on original_source/src/protocol/connection.py's
// ARMBConnection: the queue shapes, the three-stage header/command/
// payload progress tracking, and the timeout/format/EOF error handling
// are carried over field-for-field; only the Python-specific non-
// blocking-socket idiom is replaced with Go's poll-then-Read/Write.
type Connection struct {
	sock       net.Conn
	msgTimeout time.Duration

	outbound []*frame
	inbound  []*frame

	err    error
	closed bool

	compress bool
}

// New wraps sock in a Connection with the given per-message timeout.
// When compress is true, outgoing payloads are LZ4-framed and incoming
// ones are un-framed transparently; both peers must agree out of band
// (config), since the wire header carries no compression flag of its
// own.
func New(sock net.Conn, msgTimeout time.Duration, compress bool) *Connection {
	return &Connection{sock: sock, msgTimeout: msgTimeout, compress: compress}
}

// Ok reports whether the connection has neither errored nor closed.
func (c *Connection) Ok() bool { return c.err == nil && !c.closed }

// Err returns the error that took the connection out of service, if any.
func (c *Connection) Err() error { return c.err }

func (c *Connection) sending() bool {
	return c.Ok() && len(c.outbound) > 0
}

// Sending reports whether a message is still queued or in flight
// outbound, the condition the supervisor tick loop checks before handing
// a WorkerView its next request.
func (c *Connection) Sending() bool { return c.sending() }

func (c *Connection) receiving() bool {
	return c.Ok() && len(c.inbound) > 0 && !c.inbound[len(c.inbound)-1].Complete()
}

func (c *Connection) finishedReceiving() bool {
	return c.Ok() && len(c.inbound) > 0 && c.inbound[0].Complete()
}

// Send enqueues command/payload for transmission; it never blocks and
// never itself writes to the socket (that happens on the next Update).
func (c *Connection) Send(command, payload []byte) error {
	if c.compress && len(payload) > 0 {
		compressed, err := compressPayload(payload)
		if err != nil {
			return err
		}
		payload = compressed
	}
	f, err := newOutgoing(command, payload)
	if err != nil {
		return err
	}
	c.outbound = append(c.outbound, f)
	return nil
}

// Receive pops and returns the oldest fully-received message, if any.
func (c *Connection) Receive() (*Message, bool) {
	if !c.finishedReceiving() {
		return nil, false
	}
	f := c.inbound[0]
	c.inbound = c.inbound[1:]

	payload := f.payload
	if c.compress && len(payload) > 0 {
		if decompressed, err := decompressPayload(payload); err == nil {
			payload = decompressed
		}
	}
	return &Message{
		Command:    string(f.command),
		Payload:    payload,
		StartNanos: f.start,
		EndNanos:   f.end,
	}, true
}

// Close marks the connection closed and releases the underlying socket.
// Idempotent.
func (c *Connection) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.sock.Close()
}

// Poll reports the socket's current readiness, the Go analogue of the
// original's select.select([sock], [sock], [], 0) zero-timeout probe.
// Connections not backed by a raw file descriptor (e.g. net.Pipe in
// tests) are always reported ready in both directions.
func (c *Connection) Poll() (readable, writable bool, err error) {
	sc, ok := c.sock.(syscall.Conn)
	if !ok {
		return true, true, nil
	}
	return SocketStatus(sc)
}

// Update drives one tick of the state machine: it advances whichever of
// the outbound head / inbound tail frame readiness permits, and applies
// the per-message timeout. Call it in a loop seeded by Poll (or an
// equivalent caller-supplied readiness signal).
func (c *Connection) Update(readable, writable bool) {
	if c.sending() {
		if mono.NanoTime()-c.outbound[0].start > c.msgTimeout.Nanoseconds() {
			c.err = &armberr.TimeoutError{Message: "send timed out"}
		} else if writable {
			if err := c.continueSending(); err != nil {
				c.handleIOErr(err)
				return
			}
			if c.outbound[0].Complete() {
				head := c.outbound[0]
				nlog.Infof("%d: sent message %q in %d ns", head.start, string(head.command), head.Elapsed())
				c.outbound = c.outbound[1:]
			}
		}
	}

	if c.receiving() && mono.NanoTime()-c.inbound[len(c.inbound)-1].start > c.msgTimeout.Nanoseconds() {
		c.err = &armberr.TimeoutError{Message: "receive timed out"}
		return
	}

	if c.Ok() && readable {
		if c.receiving() {
			if err := c.continueReceiving(); err != nil {
				c.handleIOErr(err)
				return
			}
			if tail := c.inbound[len(c.inbound)-1]; tail.Complete() {
				nlog.Infof("%d: received message %q in %d ns", tail.start, string(tail.command), tail.Elapsed())
			}
		} else {
			c.inbound = append(c.inbound, newIncoming())
		}
	}
}

// handleIOErr mirrors the original's narrow except clause: a connection
// reset or broken pipe is an expected peer-initiated hangup and closes
// the connection in place, but any other I/O error is recorded as the
// connection's terminal error without forcing a close.
func (c *Connection) handleIOErr(err error) {
	if cos.IsRetriableConnErr(err) {
		c.err = armberr.ErrPeerClose
		c.Close()
		return
	}
	c.err = err
}

func (c *Connection) continueSending() error {
	out := c.outbound[0]

	if out.progress < out.hLen() {
		n, err := c.sock.Write(out.header[out.progress:])
		out.progress += n
		if err != nil {
			return err
		}
	}
	if out.progress >= out.hLen() && out.progress < out.hmLen() {
		n, err := c.sock.Write(out.command[out.progress-out.hLen():])
		out.progress += n
		if err != nil {
			return err
		}
	}
	if out.progress >= out.hmLen() && out.progress < out.hmdLen() {
		n, err := c.sock.Write(out.payload[out.progress-out.hmLen():])
		out.progress += n
		if err != nil {
			return err
		}
	}
	if out.Complete() {
		out.end = mono.NanoTime()
	}
	return nil
}

// readStage reads into buf[progress:], tolerating io.EOF (treated as "no
// more data right now"; the zero-progress check in continueReceiving is
// what actually detects an orderly peer shutdown). Any other error is
// fatal and propagates to Update's handleIOErr.
func readStage(sock net.Conn, buf []byte) (int, error) {
	n, err := sock.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	return n, nil
}

func (c *Connection) continueReceiving() error {
	in := c.inbound[len(c.inbound)-1]
	originalProgress := in.progress

	if in.progress < in.hLen() {
		n, err := readStage(c.sock, in.header[in.progress:])
		in.progress += n
		if err != nil {
			return err
		}

		if in.progress == in.hLen() {
			cmdLen, dataLen, hdrErr := wire.DecodeHeader(in.header)
			if hdrErr != nil {
				c.err = hdrErr
				return nil
			}
			in.command = make([]byte, cmdLen)
			in.payload = make([]byte, dataLen)
			in.headerParsed = true
		}
	}

	if in.headerParsed && in.progress >= in.hLen() && in.progress < in.hmLen() {
		n, err := readStage(c.sock, in.command[in.progress-in.hLen():])
		in.progress += n
		if err != nil {
			return err
		}
	}

	if in.headerParsed && in.progress >= in.hmLen() && in.progress < in.hmdLen() {
		n, err := readStage(c.sock, in.payload[in.progress-in.hmLen():])
		in.progress += n
		if err != nil {
			return err
		}
	}

	if in.Complete() {
		in.end = mono.NanoTime()
	}
	debug.Assertf(in.progress <= in.hmdLen(), "%d > %d", in.progress, in.hmdLen())

	if in.progress == originalProgress {
		// Read returned zero bytes though the socket was reported
		// readable: the peer performed an orderly shutdown.
		c.err = armberr.ErrPeerClose
		c.Close()
	}
	return nil
}
