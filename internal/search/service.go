package search

import "log"

// Service wraps the Meilisearch backend behind a facade the rest of the
// app can call without caring whether search is configured or reachable.
type Service struct {
	meili *Meili
}

// NewService creates a search service. meili may be nil when Meilisearch
// is not configured; every method then degrades to a no-op.
func NewService(meili *Meili) *Service {
	return &Service{meili: meili}
}

// SearchBoards runs a board search scoped to one user. The third return
// is false when the backend is missing or unhealthy so the caller can
// fall back to its database query.
func (s *Service) SearchBoards(query, userID string, limit, offset int) ([]Result, int, bool) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return nil, 0, false
	}
	results, total, err := s.meili.Search(query, userID, limit, offset)
	if err != nil {
		log.Printf("search: board search failed: %v", err)
		return nil, 0, false
	}
	return results, total, true
}

// IndexBoard pushes a board record to Meilisearch, fire-and-forget.
func (s *Service) IndexBoard(board BoardRecord) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexBoard(board); err != nil {
			log.Printf("search: index board %s: %v", board.ID, err)
		}
	}()
}

// DeleteBoard removes a board from the index, fire-and-forget.
func (s *Service) DeleteBoard(id string) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteBoard(id); err != nil {
			log.Printf("search: delete board %s: %v", id, err)
		}
	}()
}

// ReindexBoards bulk-loads board records, used after recovery or on boot.
func (s *Service) ReindexBoards(boards []BoardRecord) {
	if s == nil || s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexBoards(boards); err != nil {
		log.Printf("search: reindex boards: %v", err)
	}
}

// Close stops the backend's health monitor.
func (s *Service) Close() {
	if s == nil || s.meili == nil {
		return
	}
	s.meili.Close()
}
