package orchestrator

import (
	"testing"
	"time"

	"github.com/fetcharr/fetcharr/internal/downloader"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Blade Runner 2049", "blade runner 2049"},
		{"Schitt's Creek", "schitts creek"},
		{"Blade.Runner.2049.2160p.BluRay", "blade runner 2049 2160p bluray"},
		{"  Spaced   Out  ", "spaced out"},
		{"WALL·E", "wall e"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleSimilarity(t *testing.T) {
	if sim := TitleSimilarity("Blade Runner 2049", "Blade.Runner.2049"); sim != 1.0 {
		t.Errorf("identical token sets: %v", sim)
	}
	if sim := TitleSimilarity("Blade Runner 2049", "Blade Runner"); sim <= 0.6 {
		t.Errorf("subset overlap should clear the threshold: %v", sim)
	}
	if sim := TitleSimilarity("Blade Runner 2049", "Totally Different Film"); sim != 0 {
		t.Errorf("disjoint titles: %v", sim)
	}
	if sim := TitleSimilarity("", ""); sim != 1.0 {
		t.Errorf("two empty titles: %v", sim)
	}
	if sim := TitleSimilarity("Blade Runner", ""); sim != 0 {
		t.Errorf("one empty title: %v", sim)
	}
}

func TestFindAppearedTorrent(t *testing.T) {
	now := time.Now()
	title := "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP"

	torrent := func(hash, name string, age time.Duration) downloader.TorrentStatus {
		return downloader.TorrentStatus{Hash: hash, Name: name, TimeAdded: now.Add(-age)}
	}

	t.Run("no torrents", func(t *testing.T) {
		if got := findAppearedTorrent(nil, title, now, 3*time.Second, 0.6); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("similar and recent", func(t *testing.T) {
		torrents := []downloader.TorrentStatus{
			torrent("aa01", "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", time.Second),
			torrent("bb02", "Unrelated.Payload", time.Second),
		}
		got := findAppearedTorrent(torrents, title, now, 3*time.Second, 0.6)
		if got == nil || got.Hash != "aa01" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("dissimilar torrents never match", func(t *testing.T) {
		torrents := []downloader.TorrentStatus{
			torrent("bb02", "Unrelated.Payload", time.Second),
		}
		if got := findAppearedTorrent(torrents, title, now, 3*time.Second, 0.6); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("recent match beats a more similar old one", func(t *testing.T) {
		torrents := []downloader.TorrentStatus{
			// exact name but added an hour ago: a leftover from earlier
			torrent("old1", "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", time.Hour),
			// renamed by the daemon but added moments ago
			torrent("new1", "Blade Runner 2049 2160p BluRay", time.Second),
		}
		got := findAppearedTorrent(torrents, title, now, 3*time.Second, 0.6)
		if got == nil || got.Hash != "new1" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("similarity alone as fallback", func(t *testing.T) {
		torrents := []downloader.TorrentStatus{
			torrent("old1", "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", time.Minute),
		}
		got := findAppearedTorrent(torrents, title, now, 3*time.Second, 0.6)
		if got == nil || got.Hash != "old1" {
			t.Errorf("got %+v", got)
		}
	})
}
