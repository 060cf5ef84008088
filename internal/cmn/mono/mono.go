// Package mono provides monotonic time helpers used for in-flight message
// elapsed-time accounting (see internal/conn).
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// NanoTime returns a monotonic nanosecond clock reading. The teacher
// repo obtains this via a go:linkname into the runtime's nanotime under a
// `mono` build tag with a separate slow-path fallback file; that
// companion file was not part of the retrieved pack, so this adaptation
// uses the portable, always-compiling equivalent: the time elapsed since
// a time.Now() reading taken at package initialization. time.Since uses
// the monotonic reading that both time.Now() values carry, so the result
// is unaffected by wall-clock adjustments.
func NanoTime() int64 { return int64(time.Since(epoch)) }

var epoch = time.Now()

// Since returns the monotonic duration elapsed since a NanoTime reading.
func Since(start int64) time.Duration {
	return time.Duration(NanoTime() - start)
}
