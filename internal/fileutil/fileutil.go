// Package fileutil streams uploads to disk and copies evidence files.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrLimitExceeded is returned by WriteStream when the source is larger than
// the permitted size.
var ErrLimitExceeded = errors.New("size limit exceeded")

// WriteStream copies r into a new file at dst, refusing to write more than
// limit bytes. A limit <= 0 disables the check. dst is removed on any
// failure.
func WriteStream(dst string, r io.Reader, limit int64) (int64, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return 0, err
	}
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(out, src)
	closeErr := out.Close()
	switch {
	case err != nil:
	case limit > 0 && written > limit:
		err = fmt.Errorf("%w: more than %d bytes", ErrLimitExceeded, limit)
	default:
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return written, nil
}

// CopyFileVerified streams src to dst, checks the copied size against the
// source and returns the SHA-256 digest of the content in hex. dst is
// removed on mismatch.
func CopyFileVerified(src, dst string) (string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = out.Close()
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), in)
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashFile returns the SHA-256 digest of the file at path in hex.
func HashFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, in); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
