// Package pages holds the controllers of the todo example.
package pages

import (
	"time"

	"github.com/pthm/bindery"
)

// Status is the completion state of a todo.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Tag labels a todo.
type Tag string

const (
	TagWork     Tag = "work"
	TagPersonal Tag = "personal"
	TagUrgent   Tag = "urgent"
	TagLater    Tag = "later"
)

// Todo is one task.
type Todo struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Done        bool
	Tags        []Tag
	CreatedAt   time.Time
	UpdatedAt   time.Time

	seq int
}

// HasTag reports whether the todo carries tag.
func (t *Todo) HasTag(tag Tag) bool {
	for _, x := range t.Tags {
		if x == tag {
			return true
		}
	}
	return false
}

// Stats counts todos by state and tag.
type Stats struct {
	Total     int
	Pending   int
	Completed int
	ByTag     map[Tag]int
}

// Store is what the controllers need from persistence.
type Store interface {
	Add(title, description string, tags []Tag) string
	Get(id string) *Todo
	Update(id, title, description string, tags []Tag) bool
	Toggle(id string) bool
	Delete(id string) bool
	List(status *Status, tags []Tag) []*Todo
	Stats() Stats
}

// Register adds the example routes to app.
func Register(app *bindery.App, store Store) error {
	list := func() any { return &TodoList{store: store} }
	if err := app.Route("/", list); err != nil {
		return err
	}
	if err := app.Route("task/:id", func() any { return &TaskDetail{store: store} }); err != nil {
		return err
	}
	if err := app.Redirect("tasks/:id", "task/:id"); err != nil {
		return err
	}
	return app.NotFound(bindery.NewStatic("missing.html", nil))
}
