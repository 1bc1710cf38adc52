package pages

import (
	"context"
	"strings"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/lib/route"
)

// TodoList shows the todos, filtered by the "status" query value, and
// adds new ones.
type TodoList struct {
	*bindery.Controller
	store Store

	Title  string
	Filter string
}

func (c *TodoList) View() string { return "todos.html" }

func (c *TodoList) Load(ctx context.Context, tx *route.Transaction) error {
	if s, ok := tx.Query["status"].(string); ok {
		c.Filter = s
	}
	return c.refresh()
}

func (c *TodoList) Init(ctx context.Context) error {
	return c.Model.Set("flash", "")
}

// Add stores a todo with the bound title.
func (c *TodoList) Add() error {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return c.Model.Set("flash", "Title is required")
	}
	c.store.Add(title, "", nil)
	if err := c.Set("title", ""); err != nil {
		return err
	}
	if err := c.Model.Set("flash", "Todo added!"); err != nil {
		return err
	}
	return c.refresh()
}

func (c *TodoList) Toggle(id string) error {
	if !c.store.Toggle(id) {
		return bindery.ErrNotFound
	}
	return c.refresh()
}

func (c *TodoList) Remove(id string) error {
	if !c.store.Delete(id) {
		return bindery.ErrNotFound
	}
	if err := c.Model.Set("flash", "Todo deleted!"); err != nil {
		return err
	}
	return c.refresh()
}

func (c *TodoList) refresh() error {
	var status *Status
	if c.Filter != "" {
		s := Status(c.Filter)
		status = &s
	}
	if err := c.Model.Set("todos", c.store.List(status, nil)); err != nil {
		return err
	}
	return c.Model.Set("stats", c.store.Stats())
}
