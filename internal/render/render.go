// Package render defines the host renderer contract: the external
// collaborator a worker drives to actually produce frames.
//
// Grounded on original_source/src/blender/blender.py, whose functions
// are all guarded by "if bpy" (the Blender Python module, absent outside
// a running Blender process) and fall back to an inert default when it
// is unavailable. Renderer plays the role of that bpy handle: an
// interface so a worker can be built and tested without any concrete
// rendering engine, plus a NoOp implementation for headless operation,
// matching the original's "calls are no-ops ... when the host renderer
// is absent" fallback.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package render

import (
	"github.com/armb-farm/armb/internal/rsettings"
)

// Status is the renderer's report of the frame it was asked to start.
type Status string

const (
	StatusRunningModal Status = "RUNNING_MODAL"
	StatusCancelled    Status = "CANCELLED"
)

// Callbacks lets a Renderer report back out-of-band, asynchronous
// frame-complete or frame-cancel events, mirroring the original's
// on_render_complete and on_render_cancel registration.
type Callbacks struct {
	OnComplete func()
	OnCancel   func()
}

// Renderer is the four-operation host-engine contract.
type Renderer interface {
	CreateRenderSettings() rsettings.Settings
	ApplyRenderSettings(s rsettings.Settings)
	RenderFrame(frame int, path string) Status
	SetRenderCallbacks(cb Callbacks)
	ClearRenderCallbacks()
}

// NoOp is the renderer used when no real engine is attached: every call
// is inert and RenderFrame always reports StatusRunningModal, matching
// the original's bpy-absent fallback path.
type NoOp struct{}

func (NoOp) CreateRenderSettings() rsettings.Settings { return rsettings.Default() }
func (NoOp) ApplyRenderSettings(rsettings.Settings)   {}
func (NoOp) RenderFrame(int, string) Status           { return StatusRunningModal }
func (NoOp) SetRenderCallbacks(Callbacks)             {}
func (NoOp) ClearRenderCallbacks()                    {}

var _ Renderer = NoOp{}
