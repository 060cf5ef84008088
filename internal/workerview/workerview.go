// Package workerview implements the supervisor-side per-worker session
// state machine.
//
// Grounded on original_source/src/server/worker_view.py.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package workerview

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/armb-farm/armb/internal/armberr"
	"github.com/armb-farm/armb/internal/conn"
	"github.com/armb-farm/armb/internal/job"
	"github.com/armb-farm/armb/internal/outputstore"
	"github.com/armb-farm/armb/internal/proto"
)

// Status is one of a WorkerView's session states.
type Status string

const (
	StatusInitializing  Status = "INITIALIZING"
	StatusSynchronizing Status = "SYNCHRONIZING"
	StatusRendering     Status = "RENDERING"
	StatusUploading     Status = "UPLOADING"
	StatusReady         Status = "READY"
	StatusError         Status = "ERROR"
)

// noSettingsID is settings_id's initial value: it never matches a real
// synchronization id, forcing the first tick to synchronize.
const noSettingsID int64 = -1

// WorkerView holds one remote worker's session.
type WorkerView struct {
	mu sync.Mutex

	status     Status
	identity   string
	settingsID int64

	err     error
	timeout time.Duration
	address string

	conn *conn.Connection
	g    *errgroup.Group
}

// New constructs a WorkerView for the worker reachable at address
// ("host:port"), INITIALIZING until Start is called.
func New(address string, timeout time.Duration) *WorkerView {
	return &WorkerView{
		status:     StatusInitializing,
		settingsID: noSettingsID,
		timeout:    timeout,
		address:    address,
	}
}

// Identity satisfies job.Worker.
func (v *WorkerView) Identity() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.identity
}

// Verified reports whether an IDENTITY message has been received.
func (v *WorkerView) Verified() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.identity != ""
}

// Connected reports whether a Connection is installed and ok.
func (v *WorkerView) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn != nil && v.conn.Ok()
}

// Ok satisfies job.Worker: true when there is no error and either no
// connection yet, or the connection is ok.
func (v *WorkerView) Ok() bool {
	return v.Error() == nil && (!v.hasConn() || v.connOk())
}

func (v *WorkerView) hasConn() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn != nil
}

func (v *WorkerView) connOk() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn.Ok()
}

// Error returns the view's own error, if any, else the Connection's.
// Either one moves the view to StatusError.
func (v *WorkerView) Error() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		v.status = StatusError
		return v.err
	}
	if v.conn != nil && v.conn.Err() != nil {
		v.status = StatusError
		return v.conn.Err()
	}
	return nil
}

// ErrorDescription renders the human-facing string for the current
// error, per the mapping in internal/armberr.
func (v *WorkerView) ErrorDescription() string {
	return armberr.Describe(v.Error())
}

// Status returns the view's current state.
func (v *WorkerView) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Start attempts to establish the TCP connection, in the background
// unless block is true. It is the one background task anywhere in the
// system: on success it installs a Connection and enqueues IDENTITY;
// on failure it records the error and moves to StatusError.
func (v *WorkerView) Start(block bool) {
	connectFn := func() error {
		d := net.Dialer{Timeout: v.timeout}
		sock, err := d.Dial("tcp", v.address)
		if err != nil {
			v.mu.Lock()
			v.err = &armberr.ConnectError{Cause: err}
			v.status = StatusError
			v.mu.Unlock()
			return err
		}

		c := conn.New(sock, v.timeout, false)
		if sendErr := c.Send(proto.NewIdentity(), nil); sendErr != nil {
			v.mu.Lock()
			v.err = sendErr
			v.status = StatusError
			v.mu.Unlock()
			return sendErr
		}

		v.mu.Lock()
		v.conn = c
		v.mu.Unlock()
		return nil
	}

	if block {
		_ = connectFn()
		return
	}

	g := &errgroup.Group{}
	g.Go(connectFn)
	v.mu.Lock()
	v.g = g
	v.mu.Unlock()
}

// WaitConnect blocks until a background Start completes, returning its
// error. It is a no-op if Start was never called or was called with
// block=true.
func (v *WorkerView) WaitConnect() error {
	v.mu.Lock()
	g := v.g
	v.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Stop closes the connection if one is installed and not already
// closed.
func (v *WorkerView) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.conn != nil && v.conn.Ok() {
		v.conn.Close()
	}
}

// UpdateConnection drives one tick of the underlying Connection, if
// connected.
func (v *WorkerView) UpdateConnection(readable, writable bool) {
	v.mu.Lock()
	c := v.conn
	v.mu.Unlock()
	if c != nil {
		c.Update(readable, writable)
	}
}

// Advance polls the underlying socket and drives one Connection.Update
// tick with the result, the per-worker half of the supervisor's tick
// loop. It is a no-op (and returns a nil error) when not yet connected.
func (v *WorkerView) Advance() error {
	readable, writable, err := v.Poll()
	if err != nil {
		return err
	}
	v.UpdateConnection(readable, writable)
	return nil
}

// Poll reports the underlying socket's readiness, or false,false if not
// yet connected.
func (v *WorkerView) Poll() (readable, writable bool, err error) {
	v.mu.Lock()
	c := v.conn
	v.mu.Unlock()
	if c == nil {
		return false, false, nil
	}
	return c.Poll()
}

// Sending reports whether the underlying Connection still has an
// outbound message queued or in flight. A WorkerView with nothing
// connected is never "sending".
func (v *WorkerView) Sending() bool {
	v.mu.Lock()
	c := v.conn
	v.mu.Unlock()
	return c != nil && c.Sending()
}

// Receive drains one completed inbound message, if any.
func (v *WorkerView) Receive() (*conn.Message, bool) {
	v.mu.Lock()
	c := v.conn
	v.mu.Unlock()
	if c == nil {
		return nil, false
	}
	return c.Receive()
}

func (v *WorkerView) send(command, payload []byte) {
	v.mu.Lock()
	c := v.conn
	v.mu.Unlock()
	if c == nil {
		return
	}
	if err := c.Send(command, payload); err != nil {
		v.mu.Lock()
		v.err = err
		v.mu.Unlock()
	}
}

func (v *WorkerView) setStatus(s Status) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
}

// HandleMessage routes one completed inbound message to the appropriate
// handler, mutating j as needed. store and j may be nil when no job is
// active; COMPLETE UPLOAD payloads are only persisted when store is
// non-nil.
func (v *WorkerView) HandleMessage(msg *conn.Message, j *job.RenderJob, store *outputstore.Store) {
	parsed := proto.Parse(msg.Command)

	switch parsed.Verb {
	case proto.VerbIdentity:
		v.handleIdentity(parsed)
	case proto.VerbConfirmSync:
		v.handleConfirmSync(parsed)
	case proto.VerbRejectRender:
		v.handleRejectRender(parsed, j)
	case proto.VerbConfirmCancel:
		v.setStatus(StatusReady)
	case proto.VerbCompleteRender:
		v.handleCompleteRender(parsed, j)
	case proto.VerbRejectUpload:
		v.handleRejectUpload(parsed, j)
	case proto.VerbCompleteUpload:
		v.handleCompleteUpload(parsed, msg.Payload, j, store)
	default:
		v.mu.Lock()
		v.err = &armberr.ProtocolError{Command: msg.Command}
		v.mu.Unlock()
	}
}

func (v *WorkerView) handleIdentity(msg proto.Message) {
	hostname, ok := proto.ParseIdentity(msg)
	if !ok {
		v.mu.Lock()
		v.err = &armberr.ProtocolError{Command: "IDENTITY"}
		v.mu.Unlock()
		return
	}
	v.mu.Lock()
	wasVerified := v.identity != ""
	v.identity = hostname
	if !wasVerified {
		v.status = StatusReady
	}
	v.mu.Unlock()
}

func (v *WorkerView) handleConfirmSync(msg proto.Message) {
	id, ok := proto.ParseConfirmSynchronize(msg)
	if !ok {
		v.mu.Lock()
		v.err = &armberr.ProtocolError{Command: "CONFIRM SYNCHRONIZE"}
		v.mu.Unlock()
		return
	}
	v.mu.Lock()
	v.settingsID = int64(id)
	v.status = StatusReady
	v.mu.Unlock()
}

func (v *WorkerView) handleRejectRender(msg proto.Message, j *job.RenderJob) {
	frame, ok := proto.ParseRejectRender(msg)
	if !ok {
		v.mu.Lock()
		v.err = &armberr.ProtocolError{Command: "REJECT RENDER"}
		v.mu.Unlock()
		return
	}
	if j != nil {
		j.UnassignFrame(frame)
	}
	v.setStatus(StatusReady)
}

func (v *WorkerView) handleCompleteRender(msg proto.Message, j *job.RenderJob) {
	frame, ok := proto.ParseCompleteRender(msg)
	if !ok {
		v.mu.Lock()
		v.err = &armberr.ProtocolError{Command: "COMPLETE RENDER"}
		v.mu.Unlock()
		return
	}
	if j != nil {
		j.MarkRendered(frame)
	}
	v.setStatus(StatusReady)
}

func (v *WorkerView) handleRejectUpload(msg proto.Message, j *job.RenderJob) {
	frame, ok := proto.ParseRejectUpload(msg)
	if !ok {
		v.mu.Lock()
		v.err = &armberr.ProtocolError{Command: "REJECT UPLOAD"}
		v.mu.Unlock()
		return
	}
	if j != nil {
		j.MarkIrretrievable(frame)
	}
	v.setStatus(StatusReady)
}

func (v *WorkerView) handleCompleteUpload(msg proto.Message, payload []byte, j *job.RenderJob, store *outputstore.Store) {
	frame, name, ok := proto.ParseCompleteUpload(msg)
	if !ok {
		v.mu.Lock()
		v.err = &armberr.ProtocolError{Command: "COMPLETE UPLOAD"}
		v.mu.Unlock()
		return
	}
	if j != nil {
		j.MarkUploaded(frame)
		if store != nil {
			if _, err := store.WriteFrame(frame, j.FrameEnd, name, payload); err != nil {
				v.mu.Lock()
				v.err = fmt.Errorf("writing frame %d: %w", frame, err)
				v.mu.Unlock()
			}
		}
	}
	v.setStatus(StatusReady)
}

// RequestRenderFrame implements the READY-state scheduling decision:
// synchronize settings first if stale, else pull a frame.
func (v *WorkerView) RequestRenderFrame(j *job.RenderJob) {
	v.mu.Lock()
	stale := v.settingsID != int64(j.Settings.SynchronizationID)
	v.mu.Unlock()

	if stale {
		v.send(proto.NewSynchronize(j.Settings.SynchronizationID, j.Settings.Serialize()))
		v.setStatus(StatusSynchronizing)
		return
	}

	if frame, ok := j.AssignNextFrame(v); ok {
		v.send(proto.NewRequestRender(frame), nil)
		v.setStatus(StatusRendering)
	}
}

// RequestUploadFrame sends UPLOAD for the next rendered-but-unsent frame
// this worker owns, if any.
func (v *WorkerView) RequestUploadFrame(j *job.RenderJob) {
	if frame, ok := j.NextForUploading(v); ok {
		v.send(proto.NewRequestUpload(frame), nil)
		v.setStatus(StatusUploading)
	}
}

// CancelTask sends CANCEL; the session remains in its current state
// until CONFIRM CANCEL is observed.
func (v *WorkerView) CancelTask() {
	v.send(proto.NewCancel(), nil)
}

// RequestCleanup sends CLEANUP, telling the remote worker to remove its
// locally-rendered frame files, mirroring Supervisor.clean_workers in
// the original.
func (v *WorkerView) RequestCleanup() {
	v.send(proto.NewCleanup(), nil)
}
