package bindery

import (
	"reflect"
	"testing"
)

func TestModelNotifyOrder(t *testing.T) {
	m := NewModel()
	var events []string
	m.setRender(func(root string) { events = append(events, "render:"+root) })
	m.Subscribe(func(c Change) { events = append(events, "first:"+c.Property) })
	m.Subscribe(func(c Change) { events = append(events, "second:"+c.Property) })

	must(t, m.Set("user.name", "ada"))
	if want := []string{"first:user.name", "second:user.name"}; !reflect.DeepEqual(events, want) {
		t.Errorf("before live: %v, want %v", events, want)
	}

	events = nil
	m.setLive(true)
	must(t, m.Set("user.name", "bob"))
	want := []string{"render:user", "first:user.name", "second:user.name"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("live: %v, want %v", events, want)
	}

	if v, ok := m.Get("user.name"); !ok || v != "bob" {
		t.Errorf("Get = %v, %v", v, ok)
	}
}

func TestModelUnsubscribe(t *testing.T) {
	m := NewModel()
	var a, b int
	stopA := m.Subscribe(func(Change) { a++ })
	m.Subscribe(func(Change) { b++ })

	must(t, m.Set("x", 1))
	stopA()
	stopA()
	must(t, m.Set("x", 2))

	if a != 1 || b != 2 {
		t.Errorf("a = %d, b = %d; want 1, 2", a, b)
	}
}

func TestModelDeleteAndClear(t *testing.T) {
	m := NewModel()
	var changes []Change
	m.Subscribe(func(c Change) { changes = append(changes, c) })

	must(t, m.Set("a", 1))
	must(t, m.Set("b", 2))
	m.Delete("a")
	m.Delete("missing")

	if got := m.Keys(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Keys = %v", got)
	}
	if len(changes) != 3 || changes[2].Property != "a" || changes[2].Value != nil {
		t.Errorf("changes = %+v", changes)
	}

	m.Clear()
	if m.Len() != 0 || len(changes) != 3 {
		t.Errorf("Clear: len %d, changes %d", m.Len(), len(changes))
	}
}

func TestModelSnapshotIsCopy(t *testing.T) {
	m := NewModel()
	must(t, m.Set("a", 1))
	snap := m.Snapshot()
	snap["b"] = 2
	if m.Has("b") {
		t.Error("snapshot aliases model data")
	}
}

func TestModelNotifyWithoutWrite(t *testing.T) {
	m := NewModel()
	var roots []string
	m.setRender(func(root string) { roots = append(roots, root) })
	m.setLive(true)
	m.Notify("items.0", nil)
	if !reflect.DeepEqual(roots, []string{"items"}) {
		t.Errorf("roots = %v", roots)
	}
	if m.Has("items") {
		t.Error("Notify wrote to the model")
	}
}
