// Package store provides durable repositories for watch users, download
// jobs, and scan records. Each call opens and commits its own implicit
// transaction; no transaction ever spans an upstream call.
package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateHash is returned when creating a download job would
	// violate the torrent_hash uniqueness invariant. Callers treat it as
	// "already tracked" and move on.
	ErrDuplicateHash = errors.New("torrent hash already tracked")
)

// isUniqueViolation reports whether err is a sqlite unique-index failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
