//go:build !azure

package main

import "github.com/armb-farm/armb/internal/outputstore"

// newMirror is a no-op without the azure build tag: the supervisor
// writes rendered frames locally only.
func newMirror(string) (outputstore.Mirror, error) {
	return nil, nil
}
