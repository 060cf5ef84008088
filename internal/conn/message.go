// Package conn implements the non-blocking streamed connection state
// machine, grounded on original_source/src/protocol/connection.py
// (ARMBConnection, ARMBMessageData).
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package conn

import (
	"github.com/armb-farm/armb/internal/cmn/mono"
	"github.com/armb-farm/armb/internal/wire"
)

// frame is one in-flight or completed ARMB message (outgoing or
// incoming). It mirrors ARMBMessageData: a header buffer, a command
// buffer, a payload buffer, and a byte-granular progress counter that
// advances across the three in sequence.
type frame struct {
	header  []byte
	command []byte
	payload []byte
	progress int
	start    int64 // mono.NanoTime at creation
	end      int64 // mono.NanoTime at completion, 0 until then

	// headerParsed is only meaningful for inbound frames: until the
	// header's 16 bytes have been read, command/payload are nil and
	// headerParsed is false.
	headerParsed bool
}

func newOutgoing(command, payload []byte) (*frame, error) {
	header, err := wire.EncodeHeader(len(command), len(payload))
	if err != nil {
		return nil, err
	}
	return &frame{
		header:       header,
		command:      command,
		payload:      payload,
		start:        mono.NanoTime(),
		headerParsed: true,
	}, nil
}

func newIncoming() *frame {
	return &frame{
		header: make([]byte, wire.HeaderLen),
		start:  mono.NanoTime(),
	}
}

func (f *frame) hLen() int  { return len(f.header) }
func (f *frame) hmLen() int { return len(f.header) + len(f.command) }
func (f *frame) hmdLen() int {
	return len(f.header) + len(f.command) + len(f.payload)
}

// Complete reports whether progress has reached the total length of
// header+command+payload: a message is complete when progress equals
// header_len + message_len + data_len.
func (f *frame) Complete() bool {
	return f.headerParsed && f.progress == f.hmdLen()
}

func (f *frame) Elapsed() int64 {
	if f.end == 0 {
		return mono.NanoTime() - f.start
	}
	return f.end - f.start
}

// Message is the consumer-facing view of a completed frame, handed back
// by Connection.Receive.
type Message struct {
	Command string
	Payload []byte

	StartNanos int64
	EndNanos   int64
}
