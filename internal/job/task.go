package job

// RenderTask is the worker-side record of the single frame it is
// currently rendering.
//
// Grounded on original_source/src/shared/task.py, which carries MaxFrame
// (the filename padding width a local host renderer needs to zero-pad
// frame numbers consistently) in preference to the narrower
// src/worker/task.py that lacks it.
type RenderTask struct {
	Frame           int
	MaxFrame        int
	Started         bool
	RemoteCancelled bool
	Attempts        int
}

// NewRenderTask starts a task for frame, knowing the job's maxFrame so
// output filenames can be padded consistently (internal/cmn/cos.FilenameForFrame).
func NewRenderTask(frame, maxFrame int) *RenderTask {
	return &RenderTask{Frame: frame, MaxFrame: maxFrame}
}

// RecordFailedAttempt increments the retry counter: up to 3 attempts on
// a worker before the frame is REJECTed back to the job.
func (t *RenderTask) RecordFailedAttempt() {
	t.Attempts++
}

// Failed reports attempts >= 3.
func (t *RenderTask) Failed() bool {
	return t.Attempts >= 3
}
