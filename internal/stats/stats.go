// Package stats exposes the running job's progress and per-worker
// render counts as Prometheus gauges, served by the supervisor's
// /metrics endpoint.
//
// Grounded on aistore's stats package (stats/target_stats.go,
// stats/proxy_stats.go), which likewise wraps domain counters behind a
// small typed accessor rather than hand-rolling text output; the actual
// registry and collector types come from github.com/prometheus/
// client_golang, a dependency aistore already carries.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/armb-farm/armb/internal/job"
)

// Collector publishes one active RenderJob's state as Prometheus
// metrics. It implements prometheus.Collector directly rather than
// keeping live gauge values, since the job's own counters are already
// the source of truth and polling them at scrape time avoids a second
// copy that could drift.
type Collector struct {
	jobFn func() *job.RenderJob

	progress       *prometheus.Desc
	framesRendered *prometheus.Desc
	framesUploaded *prometheus.Desc
	framesLost     *prometheus.Desc
	workerFrames   *prometheus.Desc
	workerMeanSecs *prometheus.Desc
}

// NewCollector returns a Collector that reads the active job, if any,
// by calling jobFn at each scrape. jobFn may return nil when no job is
// running; the collector then emits no samples.
func NewCollector(jobFn func() *job.RenderJob) *Collector {
	return &Collector{
		jobFn: jobFn,
		progress: prometheus.NewDesc(
			"armb_job_progress", "Fraction of the active job's frames completed.", nil, nil),
		framesRendered: prometheus.NewDesc(
			"armb_job_frames_rendered", "Frames rendered so far in the active job.", nil, nil),
		framesUploaded: prometheus.NewDesc(
			"armb_job_frames_uploaded", "Frames uploaded so far in the active job.", nil, nil),
		framesLost: prometheus.NewDesc(
			"armb_job_frames_irretrievable", "Frames the active job gave up retrieving.", nil, nil),
		workerFrames: prometheus.NewDesc(
			"armb_worker_frames_rendered", "Frames rendered by each worker in the active job.",
			[]string{"worker"}, nil),
		workerMeanSecs: prometheus.NewDesc(
			"armb_worker_mean_render_seconds", "Mean render time per frame for each worker.",
			[]string{"worker"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.progress
	ch <- c.framesRendered
	ch <- c.framesUploaded
	ch <- c.framesLost
	ch <- c.workerFrames
	ch <- c.workerMeanSecs
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	j := c.jobFn()
	if j == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.progress, prometheus.GaugeValue, j.Progress())
	ch <- prometheus.MustNewConstMetric(c.framesRendered, prometheus.GaugeValue, float64(j.FramesRendered))
	ch <- prometheus.MustNewConstMetric(c.framesUploaded, prometheus.GaugeValue, float64(j.FramesUploaded))
	ch <- prometheus.MustNewConstMetric(c.framesLost, prometheus.GaugeValue, float64(j.FramesIrretrievable))

	for _, ws := range j.WorkerStatistics() {
		ch <- prometheus.MustNewConstMetric(c.workerFrames, prometheus.GaugeValue, float64(ws.Count), ws.Identity)
		ch <- prometheus.MustNewConstMetric(c.workerMeanSecs, prometheus.GaugeValue, ws.MeanElapsedSeconds, ws.Identity)
	}
}

var _ prometheus.Collector = (*Collector)(nil)

// NewRegistry builds a fresh registry with a Collector reading jobFn,
// ready to be served behind promhttp.HandlerFor.
func NewRegistry(jobFn func() *job.RenderJob) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(jobFn))
	return reg
}
