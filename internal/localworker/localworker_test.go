package localworker

import (
	"testing"

	"github.com/armb-farm/armb/internal/job"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/rsettings"
)

type fakeRenderer struct {
	applied   rsettings.Settings
	cb        render.Callbacks
	nextFrame render.Status
}

func (r *fakeRenderer) CreateRenderSettings() rsettings.Settings { return rsettings.Default() }
func (r *fakeRenderer) ApplyRenderSettings(s rsettings.Settings)  { r.applied = s }
func (r *fakeRenderer) RenderFrame(int, string) render.Status {
	if r.nextFrame == "" {
		return render.StatusRunningModal
	}
	return r.nextFrame
}
func (r *fakeRenderer) SetRenderCallbacks(cb render.Callbacks) { r.cb = cb }
func (r *fakeRenderer) ClearRenderCallbacks()                  { r.cb = render.Callbacks{} }

func TestUpdateAssignsThenStartsTask(t *testing.T) {
	j := job.New(1, 1, rsettings.Default())
	r := &fakeRenderer{}
	w := New(r)
	w.Synchronize("/tmp/out", j)

	w.Update() // assigns frame 1 and starts its render in the same tick
	if w.task == nil || w.task.Frame != 1 {
		t.Fatalf("expected task for frame 1, got %+v", w.task)
	}

	w.Update() // task already started: nothing further to do
	if !w.task.Started {
		t.Fatal("expected task to be started")
	}
	if r.cb.OnComplete == nil {
		t.Fatal("expected render callbacks to be registered")
	}
}

func TestHandleRenderCompleteMarksRenderedAndUploaded(t *testing.T) {
	j := job.New(1, 1, rsettings.Default())
	r := &fakeRenderer{}
	w := New(r)
	w.Synchronize("/tmp/out", j)
	w.Update()
	w.Update()

	w.handleRenderComplete()

	if j.FramesRendered != 1 || j.FramesUploaded != 1 {
		t.Fatalf("got rendered=%d uploaded=%d, want 1,1", j.FramesRendered, j.FramesUploaded)
	}
	if w.task != nil {
		t.Fatal("expected task to be cleared")
	}
}

func TestHandleRenderCancelRetriesUpToThreeTimes(t *testing.T) {
	j := job.New(1, 1, rsettings.Default())
	r := &fakeRenderer{}
	w := New(r)
	w.Synchronize("/tmp/out", j)
	w.Update()
	w.Update()

	w.handleRenderCancel()
	if w.task == nil || w.task.Attempts != 1 || w.task.Started {
		t.Fatalf("expected retry with Attempts=1, got %+v", w.task)
	}

	w.Update() // re-starts
	w.handleRenderCancel()
	w.Update()
	w.handleRenderCancel()

	if w.task != nil {
		t.Fatal("expected task to be abandoned after 3 failed attempts")
	}
	if _, ok := j.NextForUploading(w); ok {
		t.Fatal("a failed frame should not be pending upload")
	}
}

func TestCancelMarksTaskRemoteCancelled(t *testing.T) {
	j := job.New(1, 1, rsettings.Default())
	w := New(&fakeRenderer{})
	w.Synchronize("/tmp/out", j)
	w.Update()

	w.Cancel()
	if !w.task.RemoteCancelled {
		t.Fatal("expected task to be marked remote-cancelled")
	}
}
