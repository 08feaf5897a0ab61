package ledger

import (
	"context"
	"sync"
)

// =============================================================================
// CATEGORY PROVIDER - External metadata the core looks up but does not own
// =============================================================================

// Category is user-owned expense metadata. The core validates references
// to it and resolves names for report breakdowns; it owns no category
// logic beyond that.
type Category struct {
	ID     CategoryID
	UserID UserID
	Name   string
}

// CategoryProvider is the contract with the category collaborator.
type CategoryProvider interface {
	// CategoryExists reports whether the category exists and belongs to
	// userID.
	CategoryExists(ctx context.Context, id CategoryID, userID UserID) (bool, error)

	// CategoryName resolves a category's display name. Unknown ids
	// resolve to "" rather than an error; reports tolerate categories
	// deleted after their transactions were recorded.
	CategoryName(ctx context.Context, id CategoryID) (string, error)
}

// =============================================================================
// STATIC PROVIDER - In-memory implementation for tests/dev
// =============================================================================

type StaticCategories struct {
	mu         sync.RWMutex
	categories map[CategoryID]Category
}

func NewStaticCategories(categories ...Category) *StaticCategories {
	m := make(map[CategoryID]Category, len(categories))
	for _, c := range categories {
		m[c.ID] = c
	}
	return &StaticCategories{categories: m}
}

func (s *StaticCategories) Add(c Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

func (s *StaticCategories) CategoryExists(_ context.Context, id CategoryID, userID UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	return ok && c.UserID == userID, nil
}

func (s *StaticCategories) CategoryName(_ context.Context, id CategoryID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categories[id].Name, nil
}
