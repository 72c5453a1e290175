// Package storage puts uploaded objects on Alibaba Cloud OSS or the local disk.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Backend names, also used as metric labels.
const (
	BackendOSS   = "oss"
	BackendLocal = "local"
)

// Uploader stores an object under key and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Backend() string
}

var node *snowflake.Node

func init() {
	var err error
	node, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// ImageKey returns a unique object key of the form images/yyyy/mm/<id>.webp.
func ImageKey(now time.Time) string {
	return fmt.Sprintf("images/%s/%d.webp", now.UTC().Format("2006/01"), node.Generate().Int64())
}

// LocalUploader writes objects below a directory that is served at a URL prefix.
type LocalUploader struct {
	dir    string
	prefix string
}

// NewLocalUploader creates dir if needed. prefix is the URL path the directory is served under.
func NewLocalUploader(dir, prefix string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalUploader{dir: dir, prefix: strings.TrimRight(prefix, "/")}, nil
}

func (u *LocalUploader) Backend() string { return BackendLocal }

// Dir returns the directory objects are written to.
func (u *LocalUploader) Dir() string { return u.dir }

// Put writes body to a temporary file and renames it into place.
func (u *LocalUploader) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	dst := filepath.Join(u.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return u.prefix + clean, nil
}
