package downloader

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the daemon does not track the hash.
	ErrNotFound = errors.New("torrent not found")
	// ErrAuthFailed is returned when the daemon rejects the credentials.
	ErrAuthFailed = errors.New("downloader authentication failed")
)

// TorrentStatus is the per-torrent view the daemon reports.
type TorrentStatus struct {
	Hash      string    `json:"hash"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Progress  float64   `json:"progress"` // 0..1
	ETA       int64     `json:"eta"`      // seconds, 0 when unknown
	TimeAdded time.Time `json:"timeAdded"`
}

// statusFields are the torrent fields requested from the daemon.
var statusFields = []string{"name", "state", "progress", "eta", "time_added"}
