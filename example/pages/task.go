package pages

import (
	"context"
	"fmt"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/lib/route"
)

// TaskDetail edits one todo.
type TaskDetail struct {
	*bindery.Controller
	store Store
	id    string

	Title       string
	Description string
}

func (c *TaskDetail) View() string { return "task.html" }

func (c *TaskDetail) Load(ctx context.Context, tx *route.Transaction) error {
	c.id = fmt.Sprint(tx.Param("id"))
	todo := c.store.Get(c.id)
	if todo == nil {
		return fmt.Errorf("task %s: %w", c.id, bindery.ErrNotFound)
	}
	c.Title, c.Description = todo.Title, todo.Description
	return c.Model.Set("todo", todo)
}

// Save writes the bound title and description back.
func (c *TaskDetail) Save() error {
	if !c.store.Update(c.id, c.Title, c.Description, nil) {
		return bindery.ErrNotFound
	}
	if err := c.Model.Set("todo", c.store.Get(c.id)); err != nil {
		return err
	}
	return c.Model.Set("saved", true)
}

func (c *TaskDetail) Toggle() error {
	if !c.store.Toggle(c.id) {
		return bindery.ErrNotFound
	}
	return c.Model.Set("todo", c.store.Get(c.id))
}
