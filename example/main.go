package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/example/pages"
	"github.com/pthm/bindery/lib/bridge"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/views"
)

//go:embed document.html
var document string

//go:embed views static
var files embed.FS

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := pages.NewMemoryStore()

	viewFS, err := fs.Sub(files, "views")
	if err != nil {
		log.Fatal(err)
	}
	fetcher := views.NewCached(&views.Dir{FS: viewFS, Ext: ".html"})

	// every request and every live connection gets its own App over the
	// shared store
	build := func(ctx context.Context) (*bindery.App, error) {
		doc, err := dom.ParseString(document)
		if err != nil {
			return nil, err
		}
		app, err := bindery.New(ctx, bindery.Options{
			Config:   bindery.Config{Name: "todos", Outlet: "outlet", StrictRoutes: true},
			Logger:   logger,
			Document: doc,
			Views:    fetcher,
		})
		if err != nil {
			return nil, err
		}
		return app, pages.Register(app, store)
	}

	mux := http.NewServeMux()
	mux.Handle("/_live", bridge.New(build, logger))

	staticFS, err := fs.Sub(files, "static")
	if err != nil {
		log.Fatal(err)
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.Handle("/", bindery.NewServer(build, logger))

	addr := ":8080"
	logger.Info("listening", "url", "http://localhost"+addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
