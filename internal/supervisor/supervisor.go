// Package supervisor implements the coordinator side of ARMB. It owns
// the active RenderJob, the embedded local worker, and one WorkerView
// per remote worker, and drives all of them from a single tick loop
// with no goroutine of its own beyond the one WorkerView.Start may
// spawn to dial out.
//
// Grounded on original_source/src/supervisor/supervisor.py.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/armb-farm/armb/internal/cmn/cos"
	"github.com/armb-farm/armb/internal/cmn/nlog"
	"github.com/armb-farm/armb/internal/job"
	"github.com/armb-farm/armb/internal/localworker"
	"github.com/armb-farm/armb/internal/outputstore"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/workerview"
)

// Supervisor coordinates a RenderJob across an embedded local worker and
// any number of remote WorkerViews
type Supervisor struct {
	mu sync.Mutex

	outputDir string
	timeout   time.Duration

	workers []*workerview.WorkerView
	local   *localworker.LocalWorker
	store   *outputstore.Store

	job *job.RenderJob

	errs cos.Errs
}

// New constructs a Supervisor writing rendered frames under outputDir,
// with per-message timeout, driving renderer as its embedded local
// worker and optionally mirroring uploaded frames via mirror (nil
// disables mirroring). The local worker starts disabled;
// EnableSupervisorRendering turns it on.
func New(outputDir string, timeout time.Duration, renderer render.Renderer, mirror outputstore.Mirror) *Supervisor {
	s := &Supervisor{
		outputDir: outputDir,
		timeout:   timeout,
		local:     localworker.New(renderer),
		store:     outputstore.New(outputDir, ".png", mirror),
	}
	s.local.Disable()
	return s
}

// AddWorker dials host:port in the background and tracks the resulting
// WorkerView.
func (s *Supervisor) AddWorker(host string, port int) *workerview.WorkerView {
	v := workerview.New(fmt.Sprintf("%s:%d", host, port), s.timeout)
	v.Start(false)

	s.mu.Lock()
	s.workers = append(s.workers, v)
	s.mu.Unlock()
	return v
}

// RemoveWorker stops and forgets the worker at index.
func (s *Supervisor) RemoveWorker(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.workers) {
		return fmt.Errorf("worker index %d out of range (have %d)", index, len(s.workers))
	}
	s.workers[index].Stop()
	s.workers = append(s.workers[:index], s.workers[index+1:]...)
	return nil
}

// RemoveAllWorkers stops and forgets every remote worker.
func (s *Supervisor) RemoveAllWorkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		w.Stop()
	}
	s.workers = nil
}

// Workers returns the current remote worker views, for armbctl listing.
func (s *Supervisor) Workers() []*workerview.WorkerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*workerview.WorkerView, len(s.workers))
	copy(out, s.workers)
	return out
}

// EnableSupervisorRendering turns the embedded local worker on.
func (s *Supervisor) EnableSupervisorRendering() { s.local.Enable() }

// DisableSupervisorRendering turns the embedded local worker off.
func (s *Supervisor) DisableSupervisorRendering() { s.local.Disable() }

// StartJob installs j as the active job, unless a job is already running
// and has not finished uploading. Returns whether the job was actually installed.
func (s *Supervisor) StartJob(j *job.RenderJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil && !s.job.UploadingComplete() {
		return false
	}
	s.job = j
	s.local.Synchronize(s.outputDir, j)
	return true
}

// StopJob cancels the local worker's task and every remote worker whose
// session is mid-render or mid-upload, then clears the active job.
func (s *Supervisor) StopJob() {
	s.mu.Lock()
	j := s.job
	workers := append([]*workerview.WorkerView(nil), s.workers...)
	s.mu.Unlock()

	if j == nil {
		return
	}

	s.local.Cancel()
	if !j.UploadingComplete() {
		for _, w := range workers {
			if w.Ok() && (w.Status() == workerview.StatusRendering || w.Status() == workerview.StatusUploading) {
				w.CancelTask()
			}
		}
	}

	s.mu.Lock()
	s.job = nil
	s.mu.Unlock()
}

// Job returns the active RenderJob, or nil.
func (s *Supervisor) Job() *job.RenderJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// JobProgress reports the active job's progress, if any.
func (s *Supervisor) JobProgress() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return 0, false
	}
	return s.job.Progress(), true
}

// CleanWorkers tells every connected remote worker to delete its
// locally-rendered frame files.
func (s *Supervisor) CleanWorkers() {
	for _, w := range s.Workers() {
		if w.Ok() && w.Connected() {
			w.RequestCleanup()
		}
	}
}

// Update drives one supervisor tick: advance the local worker, then for
// each connected remote worker advance its Connection, dispatch any
// completed inbound message, and issue its next request if idle.
func (s *Supervisor) Update() {
	s.local.Update()

	s.errs.Reset()
	for _, w := range s.Workers() {
		if !w.Ok() || !w.Connected() {
			continue
		}
		if err := w.Advance(); err != nil {
			s.errs.Add(err)
			continue
		}

		j := s.Job()
		if msg, ok := w.Receive(); ok {
			w.HandleMessage(msg, j, s.store)
		}
		if !w.Sending() {
			s.sendMessage(w, j)
		}
	}
	if n := s.errs.Cnt(); n > 0 {
		nlog.Warningf("tick: %d worker%s reported a poll error: %v", n, cos.Plural(n), s.errs.JoinErr())
	}
}

func (s *Supervisor) sendMessage(w *workerview.WorkerView, j *job.RenderJob) {
	if w.Status() != workerview.StatusReady || j == nil {
		return
	}
	if !j.RenderingComplete() {
		w.RequestRenderFrame(j)
	} else if !j.UploadingComplete() {
		w.RequestUploadFrame(j)
	}
}
