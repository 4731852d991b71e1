// Package testutil holds fixtures shared by package tests: in-memory zip
// archives and a fake catalog HTTP server.
package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"testing"
)

// ZipEntry is one entry of a fixture archive. Names ending in "/" are directories.
type ZipEntry struct {
	Name string
	Body string
}

// BuildZip returns a zip archive containing entries in order. Names are
// written verbatim, so fixtures may contain hostile paths.
func BuildZip(t *testing.T, entries ...ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("failed to add %s to zip: %v", e.Name, err)
		}
		if e.Body == "" {
			continue
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// MD5Hex returns the lowercase hex MD5 digest of data.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
