// Package outputstore writes rendered frames to the output directory
// and removes them again on CLEANUP.
//
// Grounded on original_source/src/shared/utils.py
// (filename_for_frame, delete_rendered_images).
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package outputstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/armb-farm/armb/internal/cmn/cos"
	"github.com/armb-farm/armb/internal/cmn/nlog"
)

// Mirror optionally ships a written frame to off-box storage in
// addition to the local output directory. A nil Mirror disables
// mirroring entirely.
type Mirror interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// Store owns one worker's or supervisor's output directory.
type Store struct {
	dir    string
	ext    string
	mirror Mirror
}

// New returns a Store rooted at dir, using ext as the fallback
// extension for frames whose worker-supplied name carries none, and as
// the extension Cleanup's glob matches.
func New(dir, ext string, mirror Mirror) *Store {
	return &Store{dir: dir, ext: ext, mirror: mirror}
}

// Dir returns the store's output directory.
func (s *Store) Dir() string { return s.dir }

// WriteFrame writes data to <dir>/<N(f)><ext>, zero-padding the frame
// number per FilenameForFrame and creating dir if missing, then
// asynchronously mirrors it when a Mirror is configured.
//
// workerName is the worker-supplied basename carried by COMPLETE UPLOAD
// (e.g. "5.png"); ext is canonicalized from it via filepath.Ext, since
// the supervisor trusts that name for its extension only, never its
// frame number or stem, and falls back to the Store's own configured
// extension when workerName carries none.
func (s *Store) WriteFrame(frame, maxFrame int, workerName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(workerName)
	if ext == "" {
		ext = s.ext
	}
	name := cos.FilenameForFrame(frame, maxFrame, ext)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	if s.mirror != nil {
		go func() {
			if err := s.mirror.Upload(context.Background(), name, data); err != nil {
				nlog.Warningf("mirror upload of %s failed: %v", name, err)
			}
		}()
	}
	return path, nil
}

// Cleanup removes every rendered frame file from the output directory
// and, once empty, the directory itself.
func (s *Store) Cleanup() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "[0-9]*"+s.ext))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(s.dir)
	}
	return nil
}
