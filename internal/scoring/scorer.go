package scoring

import "strings"

// Seeder bonus bands. Applied on top of the facet sum.
var seederBands = []struct {
	min   int
	bonus int
}{
	{100, 20},
	{50, 15},
	{20, 10},
	{5, 5},
}

// SeederBonus returns the banded bonus for a seeder count.
func SeederBonus(seeders int) int {
	for _, band := range seederBands {
		if seeders >= band.min {
			return band.bonus
		}
	}
	return 0
}

// Score parses a release title and returns its total desirability score:
// the sum of the facet scores plus the seeder bonus.
func Score(title string, seeders int) int {
	_, total := scoreFacets(title)
	return total + SeederBonus(seeders)
}

// ScoreAttributes returns both the parsed facets and the facet-only score
// (without the seeder bonus), for callers that want the breakdown.
func ScoreAttributes(title string) (ReleaseAttributes, int) {
	return scoreFacets(title)
}

func scoreFacets(title string) (ReleaseAttributes, int) {
	var attrs ReleaseAttributes
	total := 0

	var pts int
	attrs.Resolution, pts = matchFacet(title, resolutionFacets)
	total += pts
	attrs.Audio, pts = matchFacet(title, audioFacets)
	total += pts
	attrs.HDR, pts = matchFacet(title, hdrFacets)
	total += pts
	attrs.Source, pts = matchFacet(title, sourceFacets)
	total += pts
	attrs.VideoCodec, pts = matchFacet(title, codecFacets)
	total += pts

	if m := releaseGroupRegex.FindStringSubmatch(title); m != nil {
		if !notGroups[strings.ToLower(m[1])] {
			attrs.ReleaseGroup = m[1]
		}
	}

	return attrs, total
}
