package indexer

import "time"

// Category codes the aggregator understands.
const (
	CategoryMovies = 2000
	CategoryTV     = 5000
)

// SearchResult is one release returned by the aggregator, normalized to a
// single canonical shape regardless of which indexer produced it.
type SearchResult struct {
	ReleaseGUID string
	IndexerID   int
	IndexerName string
	Title       string
	Size        int64
	Seeders     int
	Leechers    int
	PublishDate time.Time
	InfoHash    string
}

// Indexer describes one configured indexer on the aggregator.
type Indexer struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enable"`
}

// searchResultPayload is the aggregator's tolerant wire shape. Different
// indexer backends report the seeder count under different field names;
// normalization picks the first one present.
type searchResultPayload struct {
	GUID        string `json:"guid"`
	IndexerID   int    `json:"indexerId"`
	Indexer     string `json:"indexer"`
	Title       string `json:"title"`
	Size        int64  `json:"size"`
	Seeders     *int   `json:"seeders"`
	SeedCount   *int   `json:"seedCount"`
	Seeds       *int   `json:"seeds"`
	Leechers    int    `json:"leechers"`
	PublishDate string `json:"publishDate"`
	InfoHash    string `json:"infoHash"`
}

func (p *searchResultPayload) normalizedSeeders() int {
	switch {
	case p.Seeders != nil:
		return *p.Seeders
	case p.SeedCount != nil:
		return *p.SeedCount
	case p.Seeds != nil:
		return *p.Seeds
	default:
		return 0
	}
}

func (p *searchResultPayload) toResult() (SearchResult, bool) {
	if p.GUID == "" || p.Title == "" {
		return SearchResult{}, false
	}

	published, _ := time.Parse(time.RFC3339, p.PublishDate)

	return SearchResult{
		ReleaseGUID: p.GUID,
		IndexerID:   p.IndexerID,
		IndexerName: p.Indexer,
		Title:       p.Title,
		Size:        p.Size,
		Seeders:     p.normalizedSeeders(),
		Leechers:    p.Leechers,
		PublishDate: published,
		InfoHash:    p.InfoHash,
	}, true
}
