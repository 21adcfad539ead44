package storage

import (
	"context"
	"io"
)

// PutObjectInput describes a single object write.
type PutObjectInput struct {
	Bucket       string
	Key          string
	Body         io.Reader
	ContentType  string
	CacheControl string
}

// Service writes published artefacts to remote object storage.
type Service interface {
	// PutObject uploads the body and returns the object location as s3://bucket/key.
	PutObject(ctx context.Context, in PutObjectInput) (string, error)
}
