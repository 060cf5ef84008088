// Package job implements RenderJob and FrameAssignment.
//
// Grounded on original_source/src/server/render_job.py, adapted so that
// FrameAssignment is addressed by absolute frame number rather than by
// a 0-based index into the assignment slice (the original indexes
// frame_assignments directly by the frame argument passed to
// mark_rendered/mark_uploaded, which is only correct when frame_start
// is 0; FrameAssignment.frame_number makes the intended addressing
// explicit, so RenderJob looks the assignment up by frame_number here
// instead of replicating that quirk).
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package job

import (
	"sort"
	"time"

	"github.com/armb-farm/armb/internal/cmn/cos"
	"github.com/armb-farm/armb/internal/cmn/debug"
	"github.com/armb-farm/armb/internal/rsettings"
)

// Worker is the supervisor-side handle a FrameAssignment records as its
// assignee: either a *workerview.WorkerView or the embedded local
// worker. Comparison is by Identity, not pointer, so a worker's
// statistics survive its WorkerView being replaced across a reconnect.
type Worker interface {
	Identity() string
	Ok() bool
}

// FrameAssignment tracks one frame of a RenderJob.
type FrameAssignment struct {
	FrameNumber   int
	Assignee      Worker
	Rendered      bool
	Uploaded      bool
	Irretrievable bool
	AssignedAt    time.Time
	Elapsed       time.Duration
}

// Available reports the invariant that a frame is available iff it
// has no assignee or its assignee is in an error state.
func (a *FrameAssignment) Available() bool {
	return a.Assignee == nil || !a.Assignee.Ok()
}

func (a *FrameAssignment) assign(w Worker) {
	a.Assignee = w
	a.AssignedAt = time.Now()
	a.Rendered = false
	a.Uploaded = false
}

// WorkerStat is one row of RenderJob.WorkerStatistics.
type WorkerStat struct {
	Identity           string
	Count              int
	MeanElapsedSeconds float64
}

// RenderJob is the frame-assignment ledger for one render, created by
// the supervisor at job start and mutated only by its event loop.
type RenderJob struct {
	FrameStart int
	FrameEnd   int
	Settings   rsettings.Settings

	Assignments []*FrameAssignment

	FramesRendered      int
	FramesUploaded      int
	FramesIrretrievable int
}

// New builds a RenderJob covering [frameStart, frameEnd] inclusive.
func New(frameStart, frameEnd int, settings rsettings.Settings) *RenderJob {
	count := frameEnd - frameStart + 1
	assignments := make([]*FrameAssignment, count)
	for i := range assignments {
		assignments[i] = &FrameAssignment{FrameNumber: frameStart + i}
	}
	return &RenderJob{
		FrameStart:  frameStart,
		FrameEnd:    frameEnd,
		Settings:    settings,
		Assignments: assignments,
	}
}

// FrameCount is frame_end - frame_start + 1.
func (j *RenderJob) FrameCount() int {
	return j.FrameEnd - j.FrameStart + 1
}

func (j *RenderJob) indexOf(frame int) (int, bool) {
	i := frame - j.FrameStart
	if i < 0 || i >= len(j.Assignments) {
		return 0, false
	}
	debug.Assert(j.Assignments[i].FrameNumber == frame)
	return i, true
}

// AssignNextFrame scans assignments in increasing frame order and
// assigns the first available one to worker.
func (j *RenderJob) AssignNextFrame(worker Worker) (frame int, ok bool) {
	for _, a := range j.Assignments {
		if a.Available() {
			a.assign(worker)
			return a.FrameNumber, true
		}
	}
	return 0, false
}

// UnassignFrame clears the assignee of frame f, provided it has not
// already been rendered. Used on REJECT RENDER and when a worker dies
// before completing.
func (j *RenderJob) UnassignFrame(f int) {
	i, ok := j.indexOf(f)
	if !ok {
		return
	}
	a := j.Assignments[i]
	if !a.Rendered {
		a.Assignee = nil
	}
}

// MarkRendered is idempotent: only the first call for a given frame
// increments FramesRendered and stamps Elapsed.
func (j *RenderJob) MarkRendered(f int) {
	i, ok := j.indexOf(f)
	if !ok {
		return
	}
	a := j.Assignments[i]
	if !a.Rendered {
		a.Rendered = true
		a.Elapsed = time.Since(a.AssignedAt)
		j.FramesRendered++
	}
}

// MarkUploaded is idempotent: only the first call for a given frame
// increments FramesUploaded.
func (j *RenderJob) MarkUploaded(f int) {
	i, ok := j.indexOf(f)
	if !ok {
		return
	}
	a := j.Assignments[i]
	if !a.Uploaded {
		a.Uploaded = true
		j.FramesUploaded++
	}
}

// MarkIrretrievable is idempotent: only the first call for a given frame
// increments FramesIrretrievable: the worker reported REJECT UPLOAD and
// the rendered frame is lost.
func (j *RenderJob) MarkIrretrievable(f int) {
	i, ok := j.indexOf(f)
	if !ok {
		return
	}
	a := j.Assignments[i]
	if !a.Irretrievable {
		a.Irretrievable = true
		j.FramesIrretrievable++
	}
}

// NextForUploading returns the first assignment belonging to worker
// that has been rendered but neither uploaded nor marked irretrievable.
func (j *RenderJob) NextForUploading(worker Worker) (frame int, ok bool) {
	for _, a := range j.Assignments {
		if a.Assignee != nil && a.Assignee.Identity() == worker.Identity() &&
			a.Rendered && !a.Uploaded && !a.Irretrievable {
			return a.FrameNumber, true
		}
	}
	return 0, false
}

// RenderingComplete reports frames_rendered == frame_count.
func (j *RenderJob) RenderingComplete() bool {
	return j.FramesRendered == j.FrameCount()
}

// UploadingComplete reports (frames_uploaded + frames_irretrievable) ==
// frame_count.
func (j *RenderJob) UploadingComplete() bool {
	return j.FramesUploaded+j.FramesIrretrievable == j.FrameCount()
}

// Progress returns frames_rendered/frame_count while rendering is still
// in progress, then frames_uploaded/frame_count once all frames have
// rendered.
func (j *RenderJob) Progress() float64 {
	count := float64(j.FrameCount())
	if !j.RenderingComplete() {
		return float64(j.FramesRendered) / count
	}
	return float64(j.FramesUploaded) / count
}

// WorkerStatistics aggregates, per distinct worker identity, the count
// of rendered frames and their mean elapsed render time.
// Workers are keyed by cos.HashWorkerKey so that a WorkerView replaced
// across a reconnect still accumulates into the same row.
func (j *RenderJob) WorkerStatistics() []WorkerStat {
	type accumulator struct {
		identity string
		count    int
		total    float64
	}
	byKey := make(map[uint64]*accumulator)
	var order []uint64

	for _, a := range j.Assignments {
		if !a.Rendered || a.Assignee == nil {
			continue
		}
		identity := a.Assignee.Identity()
		key := cos.HashWorkerKey(identity)
		acc, ok := byKey[key]
		if !ok {
			acc = &accumulator{identity: identity}
			byKey[key] = acc
			order = append(order, key)
		}
		acc.count++
		acc.total += a.Elapsed.Seconds()
	}

	sort.Slice(order, func(i, k int) bool {
		return byKey[order[i]].identity < byKey[order[k]].identity
	})

	stats := make([]WorkerStat, 0, len(order))
	for _, key := range order {
		acc := byKey[key]
		stats = append(stats, WorkerStat{
			Identity:           acc.identity,
			Count:              acc.count,
			MeanElapsedSeconds: acc.total / float64(acc.count),
		})
	}
	return stats
}
