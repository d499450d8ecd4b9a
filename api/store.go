// Package api implements the demo data-item CRUD surface that the
// instrumentation middleware wraps. Items live in an in-memory store; the
// endpoints exist to generate realistic labeled traffic for the metric
// pipeline.
package api

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Item is one stored data item
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Value       float64   `json:"value"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ItemInput is the caller-supplied portion of an item
type ItemInput struct {
	Name        string   `json:"name"`
	Value       float64  `json:"value"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// ItemUpdate is a partial update; nil fields are left unchanged
type ItemUpdate struct {
	Name        *string   `json:"name"`
	Value       *float64  `json:"value"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// Stats summarizes the stored items
type Stats struct {
	TotalItems   int      `json:"total_items"`
	AverageValue float64  `json:"average_value"`
	MinValue     float64  `json:"min_value"`
	MaxValue     float64  `json:"max_value"`
	UniqueTags   []string `json:"unique_tags"`
}

// Store is an in-memory item store safe for concurrent use. Listing returns
// items in insertion order so pagination is stable.
type Store struct {
	mu    sync.RWMutex
	items map[string]Item
	order []string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		items: make(map[string]Item),
	}
}

// Create stores a new item, assigning its ID and timestamps
func (s *Store) Create(input ItemInput) Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(input)
}

// CreateBulk stores several items in one pass, preserving input order
func (s *Store) CreateBulk(inputs []ItemInput) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]Item, 0, len(inputs))
	for _, input := range inputs {
		created = append(created, s.createLocked(input))
	}
	return created
}

func (s *Store) createLocked(input ItemInput) Item {
	now := time.Now().UTC()
	item := Item{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Value:       input.Value,
		Description: input.Description,
		Tags:        input.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}

	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
	return item
}

// Get retrieves an item by ID
func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	return item, ok
}

// List returns up to limit items in insertion order, skipping offset items,
// optionally filtered to those carrying tag
func (s *Store) List(limit, offset int, tag string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		item := s.items[id]
		if tag != "" && !hasTag(item, tag) {
			continue
		}
		filtered = append(filtered, item)
	}

	if offset >= len(filtered) {
		return []Item{}
	}
	filtered = filtered[offset:]
	if limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered
}

// Update applies a partial update and refreshes the updated-at timestamp
func (s *Store) Update(id string, update ItemUpdate) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return Item{}, false
	}

	if update.Name != nil {
		item.Name = *update.Name
	}
	if update.Value != nil {
		item.Value = *update.Value
	}
	if update.Description != nil {
		item.Description = *update.Description
	}
	if update.Tags != nil {
		item.Tags = *update.Tags
	}
	item.UpdatedAt = time.Now().UTC()

	s.items[id] = item
	return item, true
}

// Delete removes an item by ID
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of stored items
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Stats summarizes item values and tags. Unique tags are sorted so the
// result is deterministic.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{UniqueTags: []string{}}
	if len(s.items) == 0 {
		return stats
	}

	tagSet := make(map[string]struct{})
	first := true
	var sum float64
	for _, item := range s.items {
		sum += item.Value
		if first || item.Value < stats.MinValue {
			stats.MinValue = item.Value
		}
		if first || item.Value > stats.MaxValue {
			stats.MaxValue = item.Value
		}
		first = false
		for _, tag := range item.Tags {
			tagSet[tag] = struct{}{}
		}
	}

	stats.TotalItems = len(s.items)
	stats.AverageValue = sum / float64(len(s.items))
	for tag := range tagSet {
		stats.UniqueTags = append(stats.UniqueTags, tag)
	}
	sort.Strings(stats.UniqueTags)
	return stats
}

func hasTag(item Item, tag string) bool {
	for _, t := range item.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
