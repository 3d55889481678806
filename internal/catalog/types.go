package catalog

// MediaKind distinguishes the two media types the pipeline acquires.
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindShow  MediaKind = "show"
)

// ParseKind maps a catalog type string onto a MediaKind.
// Anything that is not a show is treated as a movie.
func ParseKind(s string) MediaKind {
	if s == "show" {
		return KindShow
	}
	return KindMovie
}

// WatchlistEntry is a single media item a user wants acquired.
// Entries are transient: they come from the catalog and are never persisted.
type WatchlistEntry struct {
	GUID      string    `json:"guid"`
	RatingKey string    `json:"ratingKey"`
	Title     string    `json:"title"`
	Year      int       `json:"year"`
	Kind      MediaKind `json:"kind"`
}

// AccountInfo describes the catalog account a token belongs to.
// Used for health checks only.
type AccountInfo struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
	Email    string `json:"email,omitempty"`
}
