package job

import (
	"testing"

	"github.com/armb-farm/armb/internal/rsettings"
)

type fakeWorker struct {
	identity string
	ok       bool
}

func (w *fakeWorker) Identity() string { return w.identity }
func (w *fakeWorker) Ok() bool         { return w.ok }

func TestAssignNextFrameIsDeterministicAndFIFO(t *testing.T) {
	j := New(1, 3, rsettings.Default())
	w := &fakeWorker{identity: "worker-a", ok: true}

	got, ok := j.AssignNextFrame(w)
	if !ok || got != 1 {
		t.Fatalf("got (%d,%v), want (1,true)", got, ok)
	}

	got, ok = j.AssignNextFrame(w)
	if !ok || got != 2 {
		t.Fatalf("got (%d,%v), want (2,true)", got, ok)
	}
}

func TestAssignNextFrameSkipsAssignedFrames(t *testing.T) {
	j := New(5, 6, rsettings.Default())
	a := &fakeWorker{identity: "a", ok: true}
	b := &fakeWorker{identity: "b", ok: true}

	if _, ok := j.AssignNextFrame(a); !ok {
		t.Fatal("expected frame 5 to be assignable")
	}
	got, ok := j.AssignNextFrame(b)
	if !ok || got != 6 {
		t.Fatalf("got (%d,%v), want (6,true)", got, ok)
	}
	if _, ok := j.AssignNextFrame(b); ok {
		t.Fatal("expected no further frames to assign")
	}
}

func TestFrameReassignedWhenAssigneeErrors(t *testing.T) {
	j := New(1, 1, rsettings.Default())
	dead := &fakeWorker{identity: "dead", ok: false}
	j.Assignments[0].Assignee = dead

	alive := &fakeWorker{identity: "alive", ok: true}
	got, ok := j.AssignNextFrame(alive)
	if !ok || got != 1 {
		t.Fatalf("expected frame to be reassignable once assignee errors, got (%d,%v)", got, ok)
	}
}

func TestMarkRenderedIsIdempotent(t *testing.T) {
	j := New(1, 2, rsettings.Default())
	j.MarkRendered(1)
	j.MarkRendered(1)
	if j.FramesRendered != 1 {
		t.Fatalf("FramesRendered = %d, want 1", j.FramesRendered)
	}
}

func TestUnassignFrameRefusesAfterRendered(t *testing.T) {
	j := New(1, 1, rsettings.Default())
	w := &fakeWorker{identity: "a", ok: true}
	j.Assignments[0].Assignee = w
	j.MarkRendered(1)

	j.UnassignFrame(1)
	if j.Assignments[0].Assignee == nil {
		t.Fatal("expected rendered frame to keep its assignee")
	}
}

func TestNextForUploadingSkipsUploadedAndIrretrievable(t *testing.T) {
	j := New(1, 3, rsettings.Default())
	w := &fakeWorker{identity: "a", ok: true}
	for i, f := range j.Assignments {
		f.Assignee = w
		f.Rendered = true
		if i == 0 {
			f.Uploaded = true
		}
		if i == 1 {
			f.Irretrievable = true
		}
	}

	got, ok := j.NextForUploading(w)
	if !ok || got != 3 {
		t.Fatalf("got (%d,%v), want (3,true)", got, ok)
	}
}

func TestProgressSwitchesFromRenderingToUploading(t *testing.T) {
	j := New(1, 2, rsettings.Default())
	w := &fakeWorker{identity: "a", ok: true}
	j.Assignments[0].Assignee, j.Assignments[1].Assignee = w, w

	j.MarkRendered(1)
	if got := j.Progress(); got != 0.5 {
		t.Fatalf("Progress() = %v, want 0.5 (rendering phase)", got)
	}

	j.MarkRendered(2)
	if !j.RenderingComplete() {
		t.Fatal("expected rendering to be complete")
	}
	j.MarkUploaded(1)
	if got := j.Progress(); got != 0.5 {
		t.Fatalf("Progress() = %v, want 0.5 (uploading phase)", got)
	}
}

func TestUploadingCompleteCountsIrretrievable(t *testing.T) {
	j := New(1, 2, rsettings.Default())
	j.MarkUploaded(1)
	j.MarkIrretrievable(2)
	if !j.UploadingComplete() {
		t.Fatal("expected uploading to be complete once the remainder is irretrievable")
	}
}

func TestWorkerStatisticsAggregatesByIdentity(t *testing.T) {
	j := New(1, 3, rsettings.Default())
	a := &fakeWorker{identity: "a", ok: true}
	b := &fakeWorker{identity: "b", ok: true}

	j.Assignments[0].Assignee, j.Assignments[1].Assignee, j.Assignments[2].Assignee = a, a, b
	j.MarkRendered(1)
	j.MarkRendered(2)
	j.MarkRendered(3)

	stats := j.WorkerStatistics()
	if len(stats) != 2 {
		t.Fatalf("got %d rows, want 2", len(stats))
	}
	if stats[0].Identity != "a" || stats[0].Count != 2 {
		t.Fatalf("got %+v, want identity=a count=2", stats[0])
	}
	if stats[1].Identity != "b" || stats[1].Count != 1 {
		t.Fatalf("got %+v, want identity=b count=1", stats[1])
	}
}

func TestRenderTaskFailsAfterThreeAttempts(t *testing.T) {
	tk := NewRenderTask(5, 100)
	for i := 0; i < 2; i++ {
		tk.RecordFailedAttempt()
		if tk.Failed() {
			t.Fatalf("task failed after %d attempts, want 3", i+1)
		}
	}
	tk.RecordFailedAttempt()
	if !tk.Failed() {
		t.Fatal("expected task to be failed after 3 attempts")
	}
}
