package scoring

import (
	"sort"

	"github.com/fetcharr/fetcharr/internal/indexer"
)

// Candidate is a scored search result. The orchestrator walks candidates
// in order and may fall down the list when a better one fails to appear.
type Candidate struct {
	indexer.SearchResult
	Attributes ReleaseAttributes
	Score      int
}

// SelectCandidates filters out seederless results, scores the survivors,
/// and returns them ordered best-first: score descending, ties broken by
// seeders descending, then publish date descending. The sort is stable.
func SelectCandidates(results []indexer.SearchResult) []Candidate {
	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		if r.Seeders < 1 {
			continue
		}
		attrs, facetScore := scoreFacets(r.Title)
		candidates = append(candidates, Candidate{
			SearchResult: r,
			Attributes:   attrs,
			Score:        facetScore + SeederBonus(r.Seeders),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Seeders != candidates[j].Seeders {
			return candidates[i].Seeders > candidates[j].Seeders
		}
		return candidates[i].PublishDate.After(candidates[j].PublishDate)
	})

	return candidates
}
