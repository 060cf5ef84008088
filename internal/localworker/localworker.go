// Package localworker implements the supervisor-embedded worker: a
// local render-node variant that shares the supervisor's process
// instead of talking to it over a socket.
//
// Grounded on original_source/src/supervisor/supervisor_worker.py
// (SupervisorWorker), with blender.py's bpy calls replaced by the
// render.Renderer contract.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package localworker

import (
	"sync"

	"github.com/armb-farm/armb/internal/cmn/cos"
	"github.com/armb-farm/armb/internal/job"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/rsettings"
)

// Identity is the fixed, equal-by-identity name the local worker
// registers under in RenderJob.WorkerStatistics.
const Identity = "__supervisor__"

// LocalWorker is the in-process worker running alongside the
// supervisor.
type LocalWorker struct {
	mu sync.Mutex

	enabled bool
	job     *job.RenderJob
	task    *job.RenderTask

	outputDir string
	renderer  render.Renderer

	originalSettings rsettings.Settings
}

// New constructs an enabled LocalWorker bound to the given renderer.
func New(renderer render.Renderer) *LocalWorker {
	if renderer == nil {
		renderer = render.NoOp{}
	}
	return &LocalWorker{enabled: true, renderer: renderer}
}

// Identity satisfies job.Worker.
func (w *LocalWorker) Identity() string { return Identity }

// Ok always reports true: the local worker has no connection to fail.
func (w *LocalWorker) Ok() bool { return true }

func (w *LocalWorker) Enable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = true
}

func (w *LocalWorker) Disable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = false
}

// Synchronize points the local worker at the active job and output
// directory, mirroring SupervisorWorker.synchronize.
func (w *LocalWorker) Synchronize(outputDir string, j *job.RenderJob) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outputDir = outputDir
	w.job = j
}

func (w *LocalWorker) ready() bool {
	return w.enabled && w.job != nil && w.task == nil
}

func (w *LocalWorker) preparing() bool {
	return w.enabled && w.job != nil && w.task != nil && !w.task.Started
}

func (w *LocalWorker) rendering() bool {
	return w.enabled && w.task != nil && w.task.Started
}

// Cancel marks the in-flight task remote-cancelled, the same request a
// CANCEL message makes of a remote worker.
func (w *LocalWorker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.task != nil {
		w.job = nil
		w.task.RemoteCancelled = true
	}
}

// Update advances the local worker by one supervisor tick: assign the
// next frame if idle, then kick off the render if a task is pending
// start (so an idle worker assigns and starts a frame in one tick).
func (w *LocalWorker) Update() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ready() {
		if frame, ok := w.job.AssignNextFrame(w); ok {
			w.task = job.NewRenderTask(frame, w.job.FrameEnd)
		}
	}

	if w.preparing() {
		path := w.outputDir + "/" + cos.FilenameForFrame(w.task.Frame, w.task.MaxFrame, "")
		w.originalSettings = w.renderer.CreateRenderSettings()
		w.renderer.ApplyRenderSettings(w.job.Settings)

		if w.renderer.RenderFrame(w.task.Frame, path) != render.StatusCancelled {
			w.renderer.SetRenderCallbacks(render.Callbacks{
				OnComplete: w.handleRenderComplete,
				OnCancel:   w.handleRenderCancel,
			})
			w.task.Started = true
		}
	}
}

func (w *LocalWorker) handleRenderComplete() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.job != nil {
		w.job.MarkRendered(w.task.Frame)
		w.job.MarkUploaded(w.task.Frame)
		w.renderer.ClearRenderCallbacks()
	}
	w.task = nil
}

func (w *LocalWorker) handleRenderCancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.task.RemoteCancelled {
		w.renderer.ApplyRenderSettings(w.originalSettings)
		w.renderer.ClearRenderCallbacks()
		w.task = nil
		return
	}

	w.task.Started = false
	w.task.RecordFailedAttempt()
	if w.task.Failed() {
		w.renderer.ApplyRenderSettings(w.originalSettings)
		w.renderer.ClearRenderCallbacks()
		if w.job != nil {
			w.job.UnassignFrame(w.task.Frame)
		}
		w.task = nil
	}
}
