// Package worker implements the accepting-side ARMB worker daemon.
//
// Grounded on original_source/src/worker/worker.py, with blender.py's
// bpy calls replaced by the render.Renderer contract and output file
// handling delegated to internal/outputstore.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package worker

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/armb-farm/armb/internal/armberr"
	"github.com/armb-farm/armb/internal/cmn/nlog"
	"github.com/armb-farm/armb/internal/conn"
	"github.com/armb-farm/armb/internal/job"
	"github.com/armb-farm/armb/internal/outputstore"
	"github.com/armb-farm/armb/internal/proto"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/rsettings"
)

// frameExt is the rendered-image extension the accepting worker reads
// and writes by. Unlike the supervisor's outputstore, the accepting
// worker names frames without zero-padding (original_source/src/worker/
// worker.py never pads on this side; only the supervisor's output
// naming does).
const frameExt = ".png"

// Worker accepts exactly one concurrent supervisor connection and
// services RENDER/UPLOAD/CANCEL/CLEANUP against it.
type Worker struct {
	mu sync.Mutex

	port     int
	timeout  time.Duration
	renderer render.Renderer
	store    *outputstore.Store

	listener net.Listener
	conn     *conn.Connection

	supervisorIdentity string
	verified           bool

	pendingSettings rsettings.Settings
	hasPending      bool

	originalSettings rsettings.Settings
	task             *job.RenderTask

	err    error
	closed bool
}

// New constructs a Worker listening on port once Start is called.
func New(port int, timeout time.Duration, renderer render.Renderer, store *outputstore.Store) *Worker {
	if renderer == nil {
		renderer = render.NoOp{}
	}
	return &Worker{port: port, timeout: timeout, renderer: renderer, store: store, closed: true}
}

// Ok reports whether the worker has not errored.
func (w *Worker) Ok() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err == nil && (w.conn == nil || w.conn.Err() == nil)
}

func (w *Worker) connectionError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.conn != nil {
		return w.conn.Err()
	}
	return nil
}

// StatusMessage renders the human-facing status string, mirroring
// worker.status_message() from the original.
func (w *Worker) StatusMessage() string {
	w.mu.Lock()
	task := w.task
	connected := w.connected()
	port := w.port
	w.mu.Unlock()

	if err := w.connectionError(); err != nil {
		return armberr.Describe(err)
	}
	if task != nil {
		return fmt.Sprintf("Rendering frame %d", task.Frame)
	}
	if connected {
		return fmt.Sprintf("Ready on port %d", port)
	}
	return fmt.Sprintf("Waiting on port %d", port)
}

func (w *Worker) connected() bool {
	return w.conn != nil && w.conn.Ok() && !w.closed
}

// Start binds the listening socket (address reuse is Go's net package
// default for TCP listeners) and registers render callbacks.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.renderer.SetRenderCallbacks(render.Callbacks{
		OnComplete: w.handleRenderComplete,
		OnCancel:   w.handleRenderCancel,
	})
	w.originalSettings = w.renderer.CreateRenderSettings()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", w.port))
	if err != nil {
		return err
	}
	w.listener = ln
	w.closed = false
	return nil
}

// Stop shuts the listener and connection down and restores the host
// renderer's original settings.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Worker) stopLocked() {
	w.closed = true
	w.renderer.ClearRenderCallbacks()
	w.renderer.ApplyRenderSettings(w.originalSettings)
	if w.conn != nil {
		w.conn.Close()
	}
	if w.listener != nil {
		w.listener.Close()
	}
}

// Restart tears down any existing session and rebinds the listener if
// it had been stopped, grounded on Worker.restart in the original.
func (w *Worker) Restart() error {
	w.mu.Lock()
	wasClosed := w.closed
	w.mu.Unlock()

	if wasClosed {
		w.Stop()
		if err := w.Start(); err != nil {
			return err
		}
	} else {
		w.mu.Lock()
		if w.conn != nil && w.conn.Ok() {
			w.conn.Close()
		}
		w.mu.Unlock()
	}

	w.mu.Lock()
	w.task = nil
	w.conn = nil
	w.closed = false
	w.err = nil
	w.supervisorIdentity = ""
	w.verified = false
	w.hasPending = false
	w.mu.Unlock()
	return nil
}

// Update drives one tick: accept or reject an inbound connection,
// advance the installed Connection, dispatch a completed message, and
// progress a started-but-not-yet-reported render task.
func (w *Worker) Update() {
	if !w.Ok() {
		return
	}

	w.mu.Lock()
	closed := w.closed
	ln := w.listener
	w.mu.Unlock()

	if !closed && ln != nil {
		if readable, _, _ := pollListener(ln); readable {
			if w.connected() {
				w.rejectConnection()
			} else {
				w.acceptConnection()
			}
		}
	}

	w.mu.Lock()
	c := w.conn
	w.mu.Unlock()

	if w.connected() {
		readable, writable, _ := c.Poll()
		c.Update(readable, writable)

		if msg, ok := c.Receive(); ok {
			w.handleMessage(msg)
		}
		w.advanceTask()
	} else if c != nil && !c.Ok() {
		w.Stop()
	}
}

// advanceTask starts the pending render task on the host renderer, once
// one exists and has not yet been started: on the next tick, apply the
// pending settings to the host renderer and invoke it asynchronously
// with a per-frame output path.
func (w *Worker) advanceTask() {
	w.mu.Lock()
	task := w.task
	pending := w.pendingSettings
	dir := ""
	if w.store != nil {
		dir = w.store.Dir()
	}
	w.mu.Unlock()

	if task == nil || task.Started {
		return
	}

	path := fmt.Sprintf("%s/%d%s", dir, task.Frame, frameExt)
	w.renderer.ApplyRenderSettings(pending)
	if w.renderer.RenderFrame(task.Frame, path) != render.StatusCancelled {
		w.mu.Lock()
		if w.task != nil {
			w.task.Started = true
		}
		w.mu.Unlock()
	}
}

func (w *Worker) acceptConnection() {
	sock, err := w.listener.Accept()
	if err != nil {
		return
	}
	c := conn.New(sock, w.timeout, false)
	if sendErr := c.Send(proto.NewIdentity(), nil); sendErr != nil {
		nlog.Warningf("unable to send IDENTITY: %v", sendErr)
	}
	w.mu.Lock()
	w.conn = c
	w.mu.Unlock()
}

func (w *Worker) rejectConnection() {
	sock, err := w.listener.Accept()
	if err == nil {
		sock.Close()
	}
}

func (w *Worker) send(command, payload []byte) {
	w.mu.Lock()
	c := w.conn
	w.mu.Unlock()
	if c == nil {
		return
	}
	if err := c.Send(command, payload); err != nil {
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
	}
}

func (w *Worker) handleMessage(msg *conn.Message) {
	parsed := proto.Parse(msg.Command)

	switch parsed.Verb {
	case proto.VerbIdentity:
		w.handleIdentity(parsed)
	case proto.VerbSynchronize:
		w.handleSynchronize(parsed, msg.Payload)
	case proto.VerbRender:
		w.handleRender(parsed)
	case proto.VerbUpload:
		w.handleUpload(parsed)
	case proto.VerbCancel:
		w.handleCancel()
	case proto.VerbCleanup:
		w.handleCleanup()
	default:
		w.mu.Lock()
		w.err = &armberr.ProtocolError{Command: msg.Command}
		w.mu.Unlock()
	}
}

func (w *Worker) handleIdentity(msg proto.Message) {
	identity, ok := proto.ParseIdentity(msg)
	if !ok {
		w.mu.Lock()
		w.err = &armberr.ProtocolError{Command: "IDENTITY"}
		w.mu.Unlock()
		return
	}
	w.mu.Lock()
	w.supervisorIdentity = identity
	w.verified = true
	w.mu.Unlock()
}

func (w *Worker) handleSynchronize(msg proto.Message, payload []byte) {
	syncID, ok := proto.ParseSynchronize(msg)
	if !ok {
		syncID = 0
	}
	w.mu.Lock()
	w.pendingSettings = rsettings.Deserialize(payload)
	w.hasPending = true
	w.mu.Unlock()
	w.send(proto.NewConfirmSynchronize(syncID), nil)
}

func (w *Worker) handleRender(msg proto.Message) {
	frame, ok := proto.ParseRequestRender(msg)
	if !ok {
		w.mu.Lock()
		w.err = &armberr.ProtocolError{Command: "RENDER"}
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	verified, busy := w.verified, w.task != nil
	w.mu.Unlock()

	if !verified || busy {
		w.send(proto.NewRejectRender(frame), nil)
		return
	}

	w.mu.Lock()
	// The accepting worker has no RenderJob of its own (that state lives
	// entirely on the supervisor side), so there is no frame_end to pass
	// as MaxFrame here. RenderTask.MaxFrame only has meaning for
	// LocalWorker, which owns the job and supplies job.FrameEnd; on this
	// side it is unused by anything Worker does with the task.
	w.task = job.NewRenderTask(frame, frame)
	w.mu.Unlock()
}

func (w *Worker) handleUpload(msg proto.Message) {
	frame, ok := proto.ParseRequestUpload(msg)
	if !ok {
		w.mu.Lock()
		w.err = &armberr.ProtocolError{Command: "UPLOAD"}
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	verified := w.verified
	store := w.store
	w.mu.Unlock()

	if !verified || store == nil {
		w.send(proto.NewRejectUpload(frame), nil)
		return
	}

	path, name := w.renderedFramePath(frame)
	data, err := os.ReadFile(path)
	if err != nil {
		w.send(proto.NewRejectUpload(frame), nil)
		return
	}
	w.send(proto.NewCompleteUpload(frame, name), data)
}

func (w *Worker) renderedFramePath(frame int) (path, name string) {
	w.mu.Lock()
	dir := w.store.Dir()
	w.mu.Unlock()
	name = fmt.Sprintf("%d%s", frame, frameExt)
	return dir + "/" + name, name
}

func (w *Worker) handleCancel() {
	w.mu.Lock()
	task := w.task
	w.mu.Unlock()
	if task != nil {
		w.mu.Lock()
		w.task.RemoteCancelled = true
		w.mu.Unlock()
		return
	}
	w.send(proto.NewConfirmCancel(), nil)
}

func (w *Worker) handleCleanup() {
	w.mu.Lock()
	store := w.store
	w.mu.Unlock()
	if store != nil {
		if err := store.Cleanup(); err != nil {
			nlog.Warningf("cleanup failed: %v", err)
		}
	}
}

func (w *Worker) handleRenderComplete() {
	w.mu.Lock()
	task := w.task
	w.mu.Unlock()
	if task == nil {
		return
	}

	if task.RemoteCancelled {
		w.send(proto.NewConfirmCancel(), nil)
	} else {
		w.send(proto.NewCompleteRender(task.Frame), nil)
	}

	w.renderer.ApplyRenderSettings(w.originalSettings)
	w.mu.Lock()
	w.task = nil
	w.mu.Unlock()
}

func (w *Worker) handleRenderCancel() {
	w.mu.Lock()
	task := w.task
	w.mu.Unlock()
	if task == nil {
		return
	}

	if task.RemoteCancelled {
		w.send(proto.NewConfirmCancel(), nil)
		w.mu.Lock()
		w.task = nil
		w.mu.Unlock()
	} else {
		task.Started = false
		task.RecordFailedAttempt()
		if task.Failed() {
			w.send(proto.NewRejectRender(task.Frame), nil)
			w.mu.Lock()
			w.task = nil
			w.mu.Unlock()
		}
	}
	w.renderer.ApplyRenderSettings(w.originalSettings)
}
