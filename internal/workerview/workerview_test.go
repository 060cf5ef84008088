package workerview

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/armb-farm/armb/internal/conn"
	"github.com/armb-farm/armb/internal/job"
	"github.com/armb-farm/armb/internal/outputstore"
	"github.com/armb-farm/armb/internal/proto"
	"github.com/armb-farm/armb/internal/rsettings"
)

func TestHandleIdentityMovesInitializingToReady(t *testing.T) {
	v := New("127.0.0.1:0", time.Second)
	v.HandleMessage(&conn.Message{Command: "IDENTITY box1"}, nil, nil)

	if v.Status() != StatusReady {
		t.Fatalf("status = %v, want READY", v.Status())
	}
	if v.Identity() != "box1" {
		t.Fatalf("identity = %q, want box1", v.Identity())
	}
}

func TestRequestRenderFrameSynchronizesWhenStale(t *testing.T) {
	v := New("127.0.0.1:0", time.Second)
	j := job.New(1, 1, rsettings.Default())

	// No connection installed: RequestRenderFrame should still update
	// status even though send() is a silent no-op without one.
	v.RequestRenderFrame(j)
	if v.Status() != StatusSynchronizing {
		t.Fatalf("status = %v, want SYNCHRONIZING", v.Status())
	}
}

func TestHandleCompleteRenderMarksJobRendered(t *testing.T) {
	v := New("127.0.0.1:0", time.Second)
	j := job.New(5, 5, rsettings.Default())
	j.Assignments[0].Assignee = v

	v.handleCompleteRender(proto.Parse("COMPLETE RENDER 5"), j)

	if j.FramesRendered != 1 {
		t.Fatalf("FramesRendered = %d, want 1", j.FramesRendered)
	}
	if v.Status() != StatusReady {
		t.Fatalf("status = %v, want READY", v.Status())
	}
}

func TestHandleRejectRenderUnassignsFrame(t *testing.T) {
	v := New("127.0.0.1:0", time.Second)
	j := job.New(5, 5, rsettings.Default())
	j.Assignments[0].Assignee = v

	v.handleRejectRender(proto.Parse("REJECT RENDER 5"), j)

	if j.Assignments[0].Assignee != nil {
		t.Fatal("expected frame to be unassigned")
	}
}

func TestHandleCompleteUploadCanonicalizesExtensionFromWorkerName(t *testing.T) {
	v := New("127.0.0.1:0", time.Second)
	j := job.New(5, 5, rsettings.Default())
	store := outputstore.New(t.TempDir(), ".png", nil)

	v.handleCompleteUpload(proto.Parse("COMPLETE UPLOAD 5 5.exr"), []byte("P"), j, store)

	if j.FramesUploaded != 1 {
		t.Fatalf("FramesUploaded = %d, want 1", j.FramesUploaded)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "5.exr")); err != nil {
		t.Fatalf("expected 5.exr written from the worker-supplied name, got: %v", err)
	}
}

func TestHandleRejectUploadMarksIrretrievable(t *testing.T) {
	v := New("127.0.0.1:0", time.Second)
	j := job.New(7, 7, rsettings.Default())

	v.handleRejectUpload(proto.Parse("REJECT UPLOAD 7"), j)

	if j.FramesIrretrievable != 1 {
		t.Fatalf("FramesIrretrievable = %d, want 1", j.FramesIrretrievable)
	}
}
