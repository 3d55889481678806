package orchestrator

import (
	"regexp"
	"strings"
	"time"

	"github.com/fetcharr/fetcharr/internal/downloader"
)

var (
	apostropheRegex    = regexp.MustCompile("['`‘’ʼ]")
	specialCharsRegex  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	multipleSpaceRegex = regexp.MustCompile(`\s+`)
)

// NormalizeTitle converts a title to a normalized form for comparison.
// Lowercase, apostrophes stripped (so "Schitt's Creek" and "Schitts Creek"
// agree), remaining punctuation replaced with spaces, whitespace collapsed.
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	normalized = apostropheRegex.ReplaceAllString(normalized, "")
	normalized = specialCharsRegex.ReplaceAllString(normalized, " ")
	normalized = multipleSpaceRegex.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// TitleSimilarity is the Jaccard ratio over normalized title tokens:
// 0.0 for disjoint, 1.0 for identical token sets.
func TitleSimilarity(a, b string) float64 {
	tokensA := strings.Fields(NormalizeTitle(a))
	tokensB := strings.Fields(NormalizeTitle(b))

	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// findAppearedTorrent picks the daemon torrent that corresponds to a just
// enqueued release. A torrent is eligible when its name similarity to the
// release title exceeds threshold; among eligible torrents one whose
// time_added falls within window of now is preferred even when a torrent
// outside the window is more similar, because daemons often rename payloads
// shortly after adding them.
func findAppearedTorrent(torrents []downloader.TorrentStatus, title string, now time.Time, window time.Duration, threshold float64) *downloader.TorrentStatus {
	var bestRecent, bestAny *downloader.TorrentStatus
	var bestRecentSim, bestAnySim float64

	for i := range torrents {
		t := &torrents[i]
		sim := TitleSimilarity(t.Name, title)
		if sim <= threshold {
			continue
		}

		age := now.Sub(t.TimeAdded)
		if age < 0 {
			age = -age
		}
		if age <= window && sim > bestRecentSim {
			bestRecent, bestRecentSim = t, sim
		}
		if sim > bestAnySim {
			bestAny, bestAnySim = t, sim
		}
	}

	if bestRecent != nil {
		return bestRecent
	}
	return bestAny
}
