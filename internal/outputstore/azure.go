//go:build azure

// Optional Azure Blob mirror for rendered frames: a render farm is
// commonly run on disposable worker pool VMs, so mirroring finished
// frames off-box as they land is the one cloud integration point worth
// wiring here.
//
// Grounded on aistore's ais/backend/azure.go: the shared-key-credential
// client construction and the UploadStream call shape are carried over;
// everything LOM/bucket-provider-specific is dropped, since outputstore
// has no object-storage abstraction of its own to plug into.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package outputstore

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const (
	azAccNameEnvVar = "AZURE_STORAGE_ACCOUNT"
	azAccKeyEnvVar  = "AZURE_STORAGE_KEY"
	azHost          = ".blob.core.windows.net"
)

// AzureMirror uploads each written frame to a container in an Azure
// Storage account, named by the account's AZURE_STORAGE_ACCOUNT /
// AZURE_STORAGE_KEY environment variables.
type AzureMirror struct {
	client    *azblob.Client
	container string
}

// NewAzureMirror builds an AzureMirror targeting the given container.
func NewAzureMirror(container string) (*AzureMirror, error) {
	account := os.Getenv(azAccNameEnvVar)
	key := os.Getenv(azAccKeyEnvVar)
	if account == "" || key == "" {
		return nil, fmt.Errorf("outputstore: %s and %s must be set", azAccNameEnvVar, azAccKeyEnvVar)
	}

	creds, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("outputstore: azure credentials: %w", err)
	}

	endpoint := "https://" + account + azHost
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, creds, nil)
	if err != nil {
		return nil, fmt.Errorf("outputstore: azure client: %w", err)
	}

	return &AzureMirror{client: client, container: container}, nil
}

// Upload satisfies Mirror.
func (m *AzureMirror) Upload(ctx context.Context, name string, data []byte) error {
	_, err := m.client.UploadBuffer(ctx, m.container, name, data, nil)
	return err
}

var _ Mirror = (*AzureMirror)(nil)
