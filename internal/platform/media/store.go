// Package media stores uploaded appointment files on disk. Only the bytes
// live here; ownership and metadata stay in the appointment store.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("media: file not found")
	ErrFileTooLarge = errors.New("media: file exceeds maximum allowed size")
)

// MaxFileSize caps uploads at 50 MB.
const MaxFileSize = 50 * 1024 * 1024

// Object describes a stored file.
type Object struct {
	Key  string
	Size int64
	Hash string
}

type Store interface {
	// Save writes r under a fresh key derived from owner and fileName.
	// Reads beyond MaxFileSize abort with ErrFileTooLarge.
	Save(ctx context.Context, owner uuid.UUID, fileName string, r io.Reader) (*Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DiskStore keeps files under root, one subdirectory per owner.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Save(_ context.Context, owner uuid.UUID, fileName string, r io.Reader) (*Object, error) {
	dir := filepath.Join(s.root, owner.String())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	// The stored name is a uuid plus the original extension so uploads can
	// never collide or traverse paths.
	name := uuid.New().String() + filepath.Ext(fileName)
	key := filepath.Join(owner.String(), name)
	path := filepath.Join(s.root, key)

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(r, MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxFileSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &Object{Key: key, Size: n, Hash: hex.EncodeToString(h.Sum(nil))}, nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.Clean(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, filepath.Clean(key)))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}
