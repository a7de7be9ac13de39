package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// DocumentContentProvider hands back the extracted plain text for a
// document. Content may legitimately be empty (extraction pending or the
// document has no text layer).
type DocumentContentProvider interface {
	GetExtractedText(ctx context.Context, documentID uuid.UUID) (string, error)
}

type gcsContentProvider struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
	prefix        string
}

// NewGCSContentProvider reads extracted text objects written by the
// ingestion pipeline at "<prefix>/<documentID>.txt".
func NewGCSContentProvider(log *logger.Logger) (DocumentContentProvider, error) {
	serviceLog := log.With("service", "GCSContentProvider")
	bucket := os.Getenv("GCS_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
	}
	prefix := os.Getenv("GCS_EXTRACTED_TEXT_PREFIX")
	if prefix == "" {
		prefix = "extracted"
	}
	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")

	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if saPath != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadOnly))
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadOnly))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &gcsContentProvider{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucket,
		prefix:        prefix,
	}, nil
}

func (p *gcsContentProvider) GetExtractedText(ctx context.Context, documentID uuid.UUID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	key := fmt.Sprintf("%s/%s.txt", p.prefix, documentID)
	r, err := p.storageClient.Bucket(p.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			// No extracted text yet: empty content, not an error.
			return "", nil
		}
		return "", fmt.Errorf("failed to open GCS object %q: %w", key, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read GCS object %q: %w", key, err)
	}
	return string(raw), nil
}
