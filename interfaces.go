package bindery

import (
	"context"

	"github.com/pthm/bindery/lib/collab"
	"github.com/pthm/bindery/lib/route"
)

// Loader is implemented by controllers that fetch data before anything
// renders. Load receives the navigation transaction with the matched
// parameters and query values.
//
//	func (c *UserPage) Load(ctx context.Context, tx *route.Transaction) error {
//	    id, _ := tx.Param("id")
//	    return c.Model.Set("user", c.users.Get(id))
//	}
//
// Writes made during Load and Init broadcast changes but do not render:
// the model goes live only after Init.
type Loader interface {
	Load(ctx context.Context, tx *route.Transaction) error
}

// Viewer is implemented by controllers that own a view. The returned path
// is fetched through the App's ViewFetcher and written into the outlet
// element after Load.
type Viewer interface {
	View() string
}

// Initializer is implemented by controllers that prepare state after Load.
type Initializer interface {
	Init(ctx context.Context) error
}

// Renderer is implemented by controllers that need to act right before
// the first sweep. The sweep and listener binding run after Render
// returns, whether or not it failed.
type Renderer interface {
	Render(ctx context.Context) error
}

// PostRenderer is implemented by controllers that act on the rendered
// document, e.g. focusing an input.
type PostRenderer interface {
	PostRender(ctx context.Context) error
}

// Destroyer is implemented by controllers that release resources when
// navigated away from. The model is still populated when Destroy runs.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// HTTPCollaborator sends outbound requests.
type HTTPCollaborator interface {
	Request(ctx context.Context, url, method string, body any) (*collab.Response, error)
}

// StorageCollaborator persists key/value pairs. Get returns an error
// wrapping collab.ErrNotFound for a missing key.
type StorageCollaborator interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// AuthCollaborator manages the signed-in user.
type AuthCollaborator interface {
	Login(ctx context.Context, username, password string) (*collab.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*collab.User, error)
}

// ViewFetcher returns view markup by path.
type ViewFetcher interface {
	Fetch(ctx context.Context, path string) (string, error)
}
