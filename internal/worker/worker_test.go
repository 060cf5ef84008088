package worker

import (
	"strings"
	"testing"
	"time"

	"github.com/armb-farm/armb/internal/outputstore"
	"github.com/armb-farm/armb/internal/proto"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/rsettings"
)

type fakeRenderer struct {
	applied   []rsettings.Settings
	lastFrame int
	lastPath  string
	status    render.Status
	cb        render.Callbacks
}

func (f *fakeRenderer) CreateRenderSettings() rsettings.Settings { return rsettings.Default() }
func (f *fakeRenderer) ApplyRenderSettings(s rsettings.Settings) { f.applied = append(f.applied, s) }
func (f *fakeRenderer) RenderFrame(frame int, path string) render.Status {
	f.lastFrame, f.lastPath = frame, path
	if f.status == "" {
		return render.StatusRunningModal
	}
	return f.status
}
func (f *fakeRenderer) SetRenderCallbacks(cb render.Callbacks) { f.cb = cb }
func (f *fakeRenderer) ClearRenderCallbacks()                  { f.cb = render.Callbacks{} }

var _ render.Renderer = (*fakeRenderer)(nil)

func newTestWorker() (*Worker, *fakeRenderer) {
	r := &fakeRenderer{}
	w := New(0, time.Second, r, nil)
	w.renderer.SetRenderCallbacks(render.Callbacks{
		OnComplete: w.handleRenderComplete,
		OnCancel:   w.handleRenderCancel,
	})
	return w, r
}

func TestHandleRenderRejectsUntilVerified(t *testing.T) {
	w, _ := newTestWorker()
	w.handleRender(proto.Parse("RENDER 3"))

	if w.task != nil {
		t.Fatal("expected no task before IDENTITY verification")
	}
}

func TestHandleRenderStartsTaskOnceVerified(t *testing.T) {
	w, _ := newTestWorker()
	w.handleIdentity(proto.Parse("IDENTITY supervisor1"))
	w.handleRender(proto.Parse("RENDER 3"))

	if w.task == nil || w.task.Frame != 3 {
		t.Fatalf("task = %+v, want frame 3", w.task)
	}
	if w.task.Started {
		t.Fatal("task should not be marked started until advanceTask runs")
	}
}

func TestHandleRenderRejectsWhenAlreadyBusy(t *testing.T) {
	w, _ := newTestWorker()
	w.handleIdentity(proto.Parse("IDENTITY supervisor1"))
	w.handleRender(proto.Parse("RENDER 3"))
	w.handleRender(proto.Parse("RENDER 4"))

	if w.task.Frame != 3 {
		t.Fatalf("task.Frame = %d, want 3 (second RENDER should have been rejected)", w.task.Frame)
	}
}

func TestAdvanceTaskInvokesRendererAndAppliesPendingSettings(t *testing.T) {
	w, r := newTestWorker()
	w.handleIdentity(proto.Parse("IDENTITY supervisor1"))
	w.hasPending = true
	w.pendingSettings = rsettings.Default()
	w.handleRender(proto.Parse("RENDER 7"))

	w.advanceTask()

	if r.lastFrame != 7 {
		t.Fatalf("renderer.RenderFrame frame = %d, want 7", r.lastFrame)
	}
	if !w.task.Started {
		t.Fatal("expected task.Started after advanceTask")
	}
	if len(r.applied) == 0 {
		t.Fatal("expected pending settings to be applied once the render started")
	}
}

func TestAdvanceTaskLeavesTaskUnstartedWhenRendererCancels(t *testing.T) {
	w, r := newTestWorker()
	r.status = render.StatusCancelled
	w.handleIdentity(proto.Parse("IDENTITY supervisor1"))
	w.handleRender(proto.Parse("RENDER 2"))

	w.advanceTask()

	if w.task.Started {
		t.Fatal("task should not be marked started when the renderer reports CANCELLED")
	}
}

func TestHandleRenderCompleteClearsRemoteCancelledTask(t *testing.T) {
	w, _ := newTestWorker()
	w.handleIdentity(proto.Parse("IDENTITY supervisor1"))
	w.handleRender(proto.Parse("RENDER 1"))
	w.task.RemoteCancelled = true

	w.handleRenderComplete()

	if w.task != nil {
		t.Fatal("expected task to be cleared after completion")
	}
}

func TestHandleRenderCancelRetriesThenRejectsAfterThreeFailures(t *testing.T) {
	w, _ := newTestWorker()
	w.handleIdentity(proto.Parse("IDENTITY supervisor1"))
	w.handleRender(proto.Parse("RENDER 5"))

	w.handleRenderCancel()
	if w.task == nil {
		t.Fatal("task should survive the first cancel (retry budget not exhausted)")
	}
	if w.task.Started {
		t.Fatal("task.Started should be reset to false for a retry")
	}

	w.handleRenderCancel()
	w.handleRenderCancel()
	if w.task != nil {
		t.Fatal("expected task to be cleared (rejected) after three failed attempts")
	}
}

func TestHandleCancelWithNoActiveTaskConfirmsImmediately(t *testing.T) {
	w, _ := newTestWorker()
	w.handleCancel()
	// No task was ever assigned, so CANCEL should just be confirmed;
	// nothing to assert on state beyond "it does not panic without a
	// connection installed" since send() is a no-op without one.
	if w.task != nil {
		t.Fatal("expected no task to exist")
	}
}

func TestRenderedFramePathUsesConfiguredExtension(t *testing.T) {
	w, _ := newTestWorker()
	w.store = outputstore.New(t.TempDir(), frameExt, nil)

	path, name := w.renderedFramePath(12)

	if name != "12.png" {
		t.Fatalf("name = %q, want 12.png (unpadded)", name)
	}
	if !strings.HasSuffix(path, "/12.png") {
		t.Fatalf("path = %q, want suffix /12.png", path)
	}
}
