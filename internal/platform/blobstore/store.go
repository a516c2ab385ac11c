// Package blobstore keeps attachment bytes outside the database. Rows hold
// only the key; the driver decides where the bytes live.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"unicode"
)

type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrInvalidKey   = errors.New("invalid blob key")
)

// Info describes a stored blob.
type Info struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is the minimal surface the attachment workflow needs. Delete is
// idempotent: removing a missing key is not an error.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, Info, error)
	Delete(ctx context.Context, key string) error
	Driver() Driver
}

// cleanKey rejects absolute keys and anything that climbs out of the root.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	clean := path.Clean(key)
	if clean == "." {
		return "", ErrInvalidKey
	}
	return clean, nil
}

const maxFilenameLen = 120

// SanitizeFilename keeps letters, digits, '-', '_' and '.', maps spaces to
// '_' and everything else to '_'. Directory parts are dropped. An empty
// result becomes fallback.
func SanitizeFilename(name, fallback string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}

	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	if r := []rune(out); len(r) > maxFilenameLen {
		out = string(r[len(r)-maxFilenameLen:])
	}
	if out == "" {
		return fallback
	}
	return out
}
