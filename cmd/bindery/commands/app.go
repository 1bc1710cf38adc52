package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/lib/collab"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/views"
)

// shared holds the collaborators every App built by serve reuses.
type shared struct {
	storage  bindery.StorageCollaborator
	views    bindery.ViewFetcher
	http     bindery.HTTPCollaborator
	document string
	closer   io.Closer
}

func openShared(documentPath string) (*shared, error) {
	s := &shared{
		views: views.NewCached(views.NewDir(cfg.ViewsDir)),
		http:  collab.NewHTTPClient("", log.With("component", "http")),
	}
	if cfg.StoragePath != "" {
		db, err := collab.OpenBolt(cfg.StoragePath, "")
		if err != nil {
			return nil, err
		}
		s.storage, s.closer = db, db
	} else {
		s.storage = collab.NewMemoryStorage()
	}
	if documentPath != "" {
		bs, err := os.ReadFile(documentPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.document = string(bs)
	}
	return s, nil
}

func (s *shared) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// newApp builds one App from the loaded config and routes file.
func (s *shared) newApp(ctx context.Context) (*bindery.App, error) {
	opts := bindery.Options{
		Config:  cfg,
		Logger:  log,
		Storage: s.storage,
		Views:   s.views,
		HTTP:    s.http,
	}
	if s.document != "" {
		doc, err := dom.ParseString(s.document)
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		opts.Document = doc
	}
	app, err := bindery.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	if cfg.RoutesFile != "" {
		if err := app.LoadRoutesFile(cfg.RoutesFile); err != nil {
			return nil, err
		}
	}
	return app, nil
}
