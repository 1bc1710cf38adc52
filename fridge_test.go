package bindery

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pthm/bindery/lib/collab"
	"github.com/pthm/bindery/lib/encoding"
)

func mustCodec(t *testing.T, key string) *encoding.Codec {
	t.Helper()
	c, err := encoding.NewCodec([]byte(key))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func persistent(key string, sealed bool) Config {
	return Config{PersistFridge: true, SnapshotKey: key, SealSnapshots: sealed}
}

func TestFridgePersistsAcrossApps(t *testing.T) {
	for _, sealed := range []bool{false, true} {
		name := "signed"
		if sealed {
			name = "sealed"
		}
		t.Run(name, func(t *testing.T) {
			store := collab.NewMemoryStorage()
			ctx := context.Background()

			first, err := NewTestApp(page, Options{Config: persistent("secret", sealed), Storage: store})
			must(t, err)
			first.Fridge().Put("visits", 3)
			first.Fridge().Put("user", map[string]any{"name": "ada"})
			must(t, first.Close(ctx))

			second, err := NewTestApp(page, Options{Config: persistent("secret", sealed), Storage: store})
			must(t, err)
			if v, _ := second.Fridge().Get("visits"); v != int64(3) {
				t.Errorf("visits = %#v, want int64(3)", v)
			}
			user, _ := second.Fridge().Get("user")
			if m, ok := user.(map[string]any); !ok || m["name"] != "ada" {
				t.Errorf("user = %#v", user)
			}
		})
	}
}

func TestFridgeRestoreRejectsForeignKey(t *testing.T) {
	store := collab.NewMemoryStorage()
	ctx := context.Background()

	first, err := NewTestApp(page, Options{Config: persistent("one", false), Storage: store})
	must(t, err)
	first.Fridge().Put("k", "v")
	must(t, first.SaveFridge(ctx))

	_, err = NewTestApp(page, Options{Config: persistent("two", false), Storage: store})
	if !IsCollaboratorError(err) || !IsDecryptionError(err) {
		t.Errorf("New = %v, want signature CollaboratorError", err)
	}
}

func TestFridgeMissingSnapshot(t *testing.T) {
	f := NewFridge()
	codec := mustCodec(t, "k")
	if err := f.Restore(context.Background(), collab.NewMemoryStorage(), codec, false); err != nil {
		t.Errorf("Restore on empty store = %v", err)
	}
	if len(f.Keys()) != 0 {
		t.Errorf("keys = %v", f.Keys())
	}
}

func TestFridgeBoltStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fridge.db")
	ctx := context.Background()

	db, err := collab.OpenBolt(path, "")
	must(t, err)
	f := NewFridge()
	f.Put("theme", "dark")
	codec := mustCodec(t, "k")
	must(t, f.Save(ctx, db, codec, true))
	must(t, db.Close())

	db, err = collab.OpenBolt(path, "")
	must(t, err)
	defer db.Close()
	restored := NewFridge()
	must(t, restored.Restore(ctx, db, codec, true))
	if v, _ := restored.Get("theme"); v != "dark" {
		t.Errorf("theme = %#v", v)
	}
}

func TestFridgeAsScopeValue(t *testing.T) {
	f := NewFridge()
	must(t, f.Assign("cart", []any{"apple"}))
	if v, ok := f.Lookup("cart"); !ok || len(v.([]any)) != 1 {
		t.Errorf("Lookup = %v, %v", v, ok)
	}
	f.Delete("cart")
	if _, ok := f.Get("cart"); ok {
		t.Error("Delete kept the key")
	}
}
