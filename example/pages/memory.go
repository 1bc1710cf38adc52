package pages

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps todos in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	todos  map[string]*Todo
	nextID int
}

// NewMemoryStore creates a store with sample data.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{todos: make(map[string]*Todo)}

	s.Add("Buy groceries", "Milk, eggs, bread", []Tag{TagPersonal})
	s.Add("Review PR #123", "Check the authentication changes", []Tag{TagWork, TagUrgent})
	s.Add("Write documentation", "Update API docs for v2", []Tag{TagWork})
	s.Add("Call dentist", "Schedule annual checkup", []Tag{TagPersonal, TagLater})
	s.Add("Fix login bug", "Users can't reset passwords", []Tag{TagWork, TagUrgent})

	return s
}

// Add creates a new todo and returns its ID.
func (s *MemoryStore) Add(title, description string, tags []Tag) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("todo-%d", s.nextID)

	now := time.Now()
	s.todos[id] = &Todo{
		ID:          id,
		seq:         s.nextID,
		Title:       title,
		Description: description,
		Status:      StatusPending,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return id
}

// Get returns a todo by ID.
func (s *MemoryStore) Get(id string) *Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.todos[id]
}

// Update updates a todo's fields.
func (s *MemoryStore) Update(id string, title, description string, tags []Tag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	todo, ok := s.todos[id]
	if !ok {
		return false
	}

	if title != "" {
		todo.Title = title
	}
	if description != "" {
		todo.Description = description
	}
	if tags != nil {
		todo.Tags = tags
	}
	todo.UpdatedAt = time.Now()
	return true
}

// Toggle toggles the completed status of a todo.
func (s *MemoryStore) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	todo, ok := s.todos[id]
	if !ok {
		return false
	}

	if todo.Status == StatusCompleted {
		todo.Status = StatusPending
	} else {
		todo.Status = StatusCompleted
	}
	todo.Done = todo.Status == StatusCompleted
	todo.UpdatedAt = time.Now()
	return true
}

// Delete removes a todo by ID.
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todos[id]; !ok {
		return false
	}
	delete(s.todos, id)
	return true
}

// List returns all todos, optionally filtered.
func (s *MemoryStore) List(status *Status, tags []Tag) []*Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Todo
	for _, todo := range s.todos {
		if status != nil && todo.Status != *status {
			continue
		}

		if len(tags) > 0 {
			hasAllTags := true
			for _, tag := range tags {
				if !todo.HasTag(tag) {
					hasAllTags = false
					break
				}
			}
			if !hasAllTags {
				continue
			}
		}

		result = append(result, todo)
	}

	// newest first
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].seq > result[j].seq
	})

	return result
}

// Stats returns statistics about the todos.
func (s *MemoryStore) Stats() TodoStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := TodoStats{
		ByTag: make(map[Tag]int),
	}

	for _, todo := range s.todos {
		stats.Total++
		if todo.Status == StatusCompleted {
			stats.Completed++
		} else {
			stats.Pending++
		}
		for _, tag := range todo.Tags {
			stats.ByTag[tag]++
		}
	}

	return stats
}
