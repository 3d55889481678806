// Package scoring parses release titles into quality facets and scores them
// with a fixed policy. Everything in here is pure: same title and seeder
// count, same answer, forever.
package scoring

import (
	"regexp"
)

// ReleaseAttributes holds the quality facets parsed from a release title.
// Empty string means the facet was not present.
type ReleaseAttributes struct {
	Resolution   string `json:"resolution,omitempty"`
	Audio        string `json:"audio,omitempty"`
	HDR          string `json:"hdr,omitempty"`
	VideoCodec   string `json:"videoCodec,omitempty"`
	Source       string `json:"source,omitempty"`
	ReleaseGroup string `json:"releaseGroup,omitempty"`
}

// facet is one recognizable token in a family. Families are matched in
// order; the first match wins.
type facet struct {
	name    string
	pattern *regexp.Regexp
	points  int
}

var resolutionFacets = []facet{
	{"2160p", regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`), 80},
	{"1080p", regexp.MustCompile(`(?i)\b1080p\b`), 60},
	{"720p", regexp.MustCompile(`(?i)\b720p\b`), 35},
	{"480p", regexp.MustCompile(`(?i)\b480p\b`), 10},
}

// Audio dominates the score; lossless formats dominate audio.
var audioFacets = []facet{
	{"TrueHD", regexp.MustCompile(`(?i)\btrue[ ._-]?hd\b`), 120},
	{"DTS-HD MA", regexp.MustCompile(`(?i)\bdts[ ._-]?hd[ ._-]?ma\b`), 115},
	{"FLAC", regexp.MustCompile(`(?i)\bflac\b`), 110},
	{"Atmos", regexp.MustCompile(`(?i)\batmos\b`), 100},
	{"DTS-HD", regexp.MustCompile(`(?i)\bdts[ ._-]?hd\b`), 90},
	{"DTS", regexp.MustCompile(`(?i)\bdts\b`), 65},
	{"EAC3", regexp.MustCompile(`(?i)\b(eac3|ddp|dd\+)`), 55},
	{"AC3", regexp.MustCompile(`(?i)\b(ac3|dd)\b`), 40},
	{"AAC", regexp.MustCompile(`(?i)\baac\b`), 25},
	{"MP3", regexp.MustCompile(`(?i)\bmp3\b`), 10},
}

var hdrFacets = []facet{
	{"DV", regexp.MustCompile(`(?i)\b(dv|dovi|dolby[ ._-]?vision)\b`), 45},
	{"HDR10+", regexp.MustCompile(`(?i)\bhdr10\+`), 40},
	{"HDR10", regexp.MustCompile(`(?i)\bhdr(10)?\b`), 35},
}

var sourceFacets = []facet{
	{"Remux", regexp.MustCompile(`(?i)\bremux\b`), 70},
	{"BluRay", regexp.MustCompile(`(?i)\bblu[ ._-]?ray\b`), 55},
	{"WEB-DL", regexp.MustCompile(`(?i)\bweb[ ._-]?dl\b`), 45},
	{"WEBRip", regexp.MustCompile(`(?i)\bweb[ ._-]?rip\b`), 30},
	{"HDTV", regexp.MustCompile(`(?i)\bhdtv\b`), 20},
	{"DVDRip", regexp.MustCompile(`(?i)\bdvd[ ._-]?rip\b`), 10},
}

var codecFacets = []facet{
	{"x265", regexp.MustCompile(`(?i)\b(x265|h[ .]?265|hevc)\b`), 30},
	{"AV1", regexp.MustCompile(`(?i)\bav1\b`), 25},
	{"x264", regexp.MustCompile(`(?i)\b(x264|h[ .]?264|avc)\b`), 20},
	{"XviD", regexp.MustCompile(`(?i)\bxvid\b`), 5},
}

// releaseGroupRegex captures a trailing -GROUP, optionally followed by a
// short file extension.
var releaseGroupRegex = regexp.MustCompile(`-([A-Za-z0-9]+)(?:\.[A-Za-z0-9]{2,4})?$`)

// groups that are really the tail of a hyphenated quality token (WEB-DL,
// DTS-HD MA, Blu-ray), not a release group.
var notGroups = map[string]bool{
	"dl": true, "hd": true, "ma": true, "ray": true, "rip": true,
}

func matchFacet(title string, facets []facet) (string, int) {
	for _, f := range facets {
		if f.pattern.MatchString(title) {
			return f.name, f.points
		}
	}
	return "", 0
}

// Parse extracts the quality facets from a release title.
func Parse(title string) ReleaseAttributes {
	attrs, _ := scoreFacets(title)
	return attrs
}
