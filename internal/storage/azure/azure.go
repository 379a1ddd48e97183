// Package azure implements the Azure Blob Storage icon storage backend using
// shared-key authentication. Icon containers allow public blob read, so
// PublicURL is the plain blob URL (or the configured CDN URL).
package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"

	"github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/storage"
)

func init() {
	storage.Register("azure", func(cfg *config.Config) (storage.IconStore, error) {
		return New(&cfg.Storage.Azure)
	})
}

// AzureStore implements the IconStore interface for Azure Blob Storage
type AzureStore struct {
	client        *azblob.Client
	accountName   string
	containerName string
	cdnURL        string
}

// New creates a new Azure Blob icon storage backend
func New(cfg *config.AzureStorageConfig) (*AzureStore, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure account_name and account_key are required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure container_name is required")
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureStore{
		client:        client,
		accountName:   cfg.AccountName,
		containerName: cfg.ContainerName,
		cdnURL:        strings.TrimRight(cfg.CDNURL, "/"),
	}, nil
}

// Upload stores an object in Azure Blob Storage
func (s *AzureStore) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string, overwrite bool) error {
	if !overwrite {
		exists, err := s.Exists(ctx, path)
		if err != nil {
			return err
		}
		if exists {
			return storage.ErrObjectExists
		}
	}

	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlockBlobClient(path)

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	_, err = blobClient.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	return nil
}

// PublicURL returns the stable public blob URL
func (s *AzureStore) PublicURL(path string) string {
	path = strings.TrimLeft(path, "/")
	if s.cdnURL != "" {
		return s.cdnURL + "/" + path
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.accountName, s.containerName, path)
}

// Delete removes an object from Azure Blob Storage
func (s *AzureStore) Delete(ctx context.Context, path string) error {
	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(path)
	if _, err := blobClient.Delete(ctx, nil); err != nil {
		return fmt.Errorf("failed to delete from Azure Blob: %w", err)
	}
	return nil
}

// Exists reports whether an object occupies path
func (s *AzureStore) Exists(ctx context.Context, path string) (bool, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(path)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		// GetProperties errors for missing blobs; treat as absence.
		return false, nil
	}
	return true, nil
}
