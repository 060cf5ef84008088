package main

import (
	"strings"
	"testing"
	"time"

	"github.com/armb-farm/armb/internal/outputstore"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/worker"
)

func TestWorkerStatusLineReportsWaitingBeforeStart(t *testing.T) {
	store := outputstore.New(t.TempDir(), ".png", nil)
	w := worker.New(9100, time.Second, render.NoOp{}, store)

	line := workerStatusLine(w)
	if !strings.Contains(line, "Waiting on port 9100") {
		t.Fatalf("workerStatusLine = %q, want it to mention the listen port", line)
	}
}
