// Package nlog is a small buffered, leveled logger in the style of the
// teacher's cmn/nlog: one log file per process role, periodic Flush
// called from a background goroutine of each daemon rather than on
// every line.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var severityChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

// MaxSize: once exceeded, the current log file is flushed and closed;
// the next line reopens the same file in append mode, so no older log
// is moved aside.
var MaxSize int64 = 4 * 1024 * 1024

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	role         string
	title        string

	mu  sync.Mutex
	w   *bufio.Writer
	f   *os.File
	cur int64
)

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func SetLogDirRole(dir, r string) { logDir, role = dir, r }
func SetTitle(s string)           { title = s }

func LogName() string { return sname() + ".log" }

func sname() string {
	if title != "" {
		return title
	}
	if role != "" {
		return "armb-" + role
	}
	return "armb"
}

func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }

func log(sev severity, format string, args ...any) {
	var line string
	if format == "" {
		line = fmt.Sprintln(args...)
	} else {
		line = fmt.Sprintf(format, args...) + "\n"
	}
	ts := time.Now().Format("0102 15:04:05.000000")
	full := fmt.Sprintf("%c%s %s", severityChar[sev], ts, line)

	if toStderr || alsoToStderr || sev >= sevWarn {
		os.Stderr.WriteString(full)
		if toStderr {
			return
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if err := ensureOpen(); err != nil {
		return
	}
	n, _ := w.WriteString(full)
	cur += int64(n)
	if cur > MaxSize {
		rotate()
	}
}

func ensureOpen() error {
	if f != nil {
		return nil
	}
	if logDir == "" {
		f = os.Stderr
		w = bufio.NewWriter(f)
		return nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(logDir, LogName())
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f, w = file, bufio.NewWriter(file)
	return nil
}

// under mu
func rotate() {
	if f == nil || f == os.Stderr {
		return
	}
	w.Flush()
	f.Close()
	f, w, cur = nil, nil, 0
}

// Flush writes any buffered log lines to disk; pass true on process exit
// to also close the underlying file.
func Flush(exit ...bool) {
	mu.Lock()
	defer mu.Unlock()
	if w != nil {
		w.Flush()
	}
	if len(exit) > 0 && exit[0] && f != nil && f != os.Stderr {
		f.Sync()
		f.Close()
		f, w = nil, nil
	}
}
