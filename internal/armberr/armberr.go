// Package armberr defines the typed ARMB error kinds and their
// human-readable descriptions, matching aistore's idiom of keeping
// small typed sentinel errors rather than encoding error kind as a
// string. Wrap attaches a github.com/pkg/errors stack trace to an error;
// the connection, worker and worker-view code store these errors
// unwrapped.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package armberr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ConnectError wraps a failure to establish the initial TCP connection.
type ConnectError struct{ Cause error }

func (e *ConnectError) Error() string { return "connect: " + e.Cause.Error() }
func (e *ConnectError) Unwrap() error { return e.Cause }

// TimeoutError reports that an in-flight message did not complete
// within msg_timeout.
type TimeoutError struct {
	Message string // the command string of the message that timed out
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("message %q did not complete within timeout", e.Message)
}

// FormatError reports that a 16-byte header did not match the ARMB
// grammar.
type FormatError struct {
	Header []byte
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("header %q does not match ARMB format", e.Header)
}

// ProtocolError reports an unknown or malformed command string.
type ProtocolError struct {
	Command string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unable to parse command %q", e.Command)
}

// ErrPeerClose reports a zero-byte read: the peer performed an
// orderly close.
var ErrPeerClose = errors.New("peer closed the connection")

// RendererError reports that the host renderer could not start a
// frame, surfaced as REJECT RENDER after retry exhaustion.
type RendererError struct {
	Frame int
}

func (e *RendererError) Error() string {
	return fmt.Sprintf("renderer failed to produce frame %d", e.Frame)
}

// UploadError reports a missing rendered file, surfaced as REJECT
// UPLOAD.
type UploadError struct {
	Frame int
	Cause error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("unable to open rendered frame %d: %v", e.Frame, e.Cause)
}
func (e *UploadError) Unwrap() error { return e.Cause }

// Wrap attaches a stack trace to err, following aistore's use of github.com/pkg/errors in dsort/dsort.go
// and ext/dsort/dsort.go.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

// Describe renders the human-facing string a WorkerView or Worker
// exposes for its current error.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var (
		connErr     *ConnectError
		timeoutErr  *TimeoutError
		formatErr   *FormatError
		protocolErr *ProtocolError
	)
	switch {
	case errors.As(err, &connErr):
		return "Unable to connect"
	case errors.Is(err, ErrPeerClose):
		return "Connection lost or rejected"
	case errors.As(err, &formatErr):
		return "Received an invalid message (check ARMB versions)"
	case errors.As(err, &timeoutErr):
		return "Connection timed out"
	case errors.As(err, &protocolErr):
		return "Received an unknown message"
	default:
		return "Internal Error: " + err.Error()
	}
}
