//go:build azure

package main

import "github.com/armb-farm/armb/internal/outputstore"

// newMirror builds the Azure Blob mirror when container is non-empty;
// this build also requires AZURE_STORAGE_ACCOUNT/AZURE_STORAGE_KEY in
// the environment (outputstore.NewAzureMirror).
func newMirror(container string) (outputstore.Mirror, error) {
	if container == "" {
		return nil, nil
	}
	return outputstore.NewAzureMirror(container)
}
