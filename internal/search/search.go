package search

// BoardRecord is the data we index for a board. MemberIDs drives the
// per-user visibility filter at query time.
type BoardRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	OwnerID     string   `json:"ownerId"`
	MemberIDs   []string `json:"memberIds"`
	CreatedAt   int64    `json:"createdAt"`
}

// Result is a single board hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"ownerId"`
	CreatedAt   int64  `json:"createdAt"`
}

// Indexer can push board records into a search index.
type Indexer interface {
	IndexBoard(board BoardRecord) error
	DeleteBoard(id string) error
}

// Searcher can execute a full-text board search scoped to one user.
type Searcher interface {
	Search(query, userID string, limit, offset int) ([]Result, int, error)
	Healthy() bool
}
