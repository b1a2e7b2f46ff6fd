// Package store persists scan output. Findings, scan history, and cost
// anomalies are written as JSON blobs through a pluggable backend so the
// same code serves a local results directory and an S3 bucket.
package store

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BlobStore is the storage backend contract.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// PrefixedStore namespaces every key under a fixed prefix, so one bucket
// can hold output for several deployments.
type PrefixedStore struct {
	Backend BlobStore
	Prefix  string
}

func NewPrefixedStore(backend BlobStore, prefix string) *PrefixedStore {
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return &PrefixedStore{Backend: backend, Prefix: prefix}
}

func (p *PrefixedStore) Put(ctx context.Context, key string, data []byte) error {
	return p.Backend.Put(ctx, p.Prefix+key, data)
}

func (p *PrefixedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Backend.Get(ctx, p.Prefix+key)
}

func (p *PrefixedStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.Backend.List(ctx, p.Prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, p.Prefix))
	}
	return out, nil
}

func (p *PrefixedStore) Delete(ctx context.Context, key string) error {
	return p.Backend.Delete(ctx, p.Prefix+key)
}

// IsNotFound reports whether err means the key does not exist, for either
// backend.
func IsNotFound(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var noKey *types.NoSuchKey
	return errors.As(err, &noKey)
}
