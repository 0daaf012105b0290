// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package integrity computes content digests for assets that are fetched
// remotely by proxies and must be verified before activation.
package integrity

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest streams r and returns its SHA-256 digest.
func Digest(r io.Reader) ([]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return h.Sum(nil), nil
}

// FileHexDigest returns the lowercase hex SHA-256 digest of the file at path.
// The digest must match byte-for-byte what is served to proxies, so the file
// is read directly rather than through any cache.
func FileHexDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := Digest(bufio.NewReader(f))
	if err != nil {
		return "", fmt.Errorf("failed to digest %s: %w", path, err)
	}
	return hex.EncodeToString(sum), nil
}
