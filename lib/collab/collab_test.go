package collab

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"
)

type kv interface {
	Store
	Keys(ctx context.Context) ([]string, error)
}

func TestStorage(t *testing.T) {
	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"), "")
	if err != nil {
		t.Fatalf("OpenBolt error = %v", err)
	}
	defer bolt.Close()

	stores := map[string]kv{
		"memory": NewMemoryStorage(),
		"bolt":   bolt,
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Get(ctx, "missing"); !IsNotFound(err) {
				t.Errorf("Get missing error = %v, want ErrNotFound", err)
			}
			if err := s.Put(ctx, "b", []byte("two")); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, "a", []byte("one")); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get(ctx, "a")
			if err != nil || string(got) != "one" {
				t.Errorf("Get a = %q, %v", got, err)
			}
			keys, _ := s.Keys(ctx)
			if !reflect.DeepEqual(keys, []string{"a", "b"}) {
				t.Errorf("Keys = %v", keys)
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Get(ctx, "a"); !IsNotFound(err) {
				t.Errorf("Get after delete error = %v", err)
			}
		})
	}
}

func TestBoltPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := OpenBolt(path, "fridge")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenBolt(path, "fridge")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got, err := s.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestSessionAuth(t *testing.T) {
	ctx := context.Background()
	check := func(_ context.Context, user, pass string) (*User, error) {
		if pass != "secret" {
			return nil, errors.New("bad password")
		}
		return &User{ID: "1", Name: user, Roles: []string{"admin"}}, nil
	}
	auth := NewSessionAuth(NewMemoryStorage(), check)

	if u, err := auth.CurrentUser(ctx); u != nil || err != nil {
		t.Errorf("CurrentUser before login = %v, %v", u, err)
	}
	if _, err := auth.Login(ctx, "ann", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Login wrong password error = %v", err)
	}
	if _, err := auth.Login(ctx, "ann", "secret"); err != nil {
		t.Fatal(err)
	}

	u, err := auth.CurrentUser(ctx)
	if err != nil || u == nil {
		t.Fatalf("CurrentUser = %v, %v", u, err)
	}
	if u.Name != "ann" || !u.HasRole("admin") {
		t.Errorf("user = %+v", u)
	}

	if err := auth.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if u, _ := auth.CurrentUser(ctx); u != nil {
		t.Errorf("CurrentUser after logout = %+v", u)
	}
}

func TestHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Type", r.Header.Get("Content-Type"))
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/api/", nil)
	ctx := context.Background()

	resp, err := c.Request(ctx, "echo", http.MethodPost, map[string]int{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := resp.JSON(&got); err != nil || got["n"] != 1 {
		t.Errorf("JSON = %v, %v", got, err)
	}
	if resp.Header.Get("X-Method") != "POST" || resp.Header.Get("X-Type") != "application/json" {
		t.Errorf("headers = %v", resp.Header)
	}

	resp, err = c.Request(ctx, srv.URL+"/missing", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.OK() || resp.Status != http.StatusNotFound {
		t.Errorf("status = %d", resp.Status)
	}

	if _, err := c.Request(ctx, "http://127.0.0.1:1/", "", nil); err == nil {
		t.Error("expected transport error")
	}
}
