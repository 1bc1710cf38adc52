package bindery

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/pthm/bindery/internal/logging"
	"github.com/pthm/bindery/lib/dom"
)

// BuildFunc creates a fully registered App for one request.
type BuildFunc func(ctx context.Context) (*App, error)

// Server prerenders addresses over HTTP. Every request gets a fresh App
// from Build because an App is not safe for concurrent use.
type Server struct {
	Build BuildFunc
	Log   *slog.Logger

	// OnError is called when building or navigating fails. Customize this
	// to handle errors appropriately for your application.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// NewServer creates a prerender server over build.
func NewServer(build BuildFunc, log *slog.Logger) *Server {
	s := &Server{Build: build, Log: logging.OrDiscard(log)}
	s.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case IsNotFound(err):
			http.Error(w, "Not found", http.StatusNotFound)
		case IsDecryptionError(err):
			http.Error(w, "Bad request", http.StatusBadRequest)
		case IsCollaboratorError(err):
			http.Error(w, "Bad gateway", http.StatusBadGateway)
		default:
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}
	return s
}

// ServeHTTP navigates a fresh App to the request URI and writes the
// rendered document. Unmatched addresses are answered with 404 after the
// not-found route, if any, has rendered.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	app, err := s.Build(r.Context())
	if err != nil {
		s.Log.Error("build app", "err", err)
		s.OnError(w, r, err)
		return
	}
	defer func() {
		if err := app.Close(context.WithoutCancel(r.Context())); err != nil {
			s.Log.Warn("close app", "err", err)
		}
	}()

	uri := r.URL.RequestURI()
	status := http.StatusOK
	if def, _ := app.Matcher().Match(uri); def == nil {
		status = http.StatusNotFound
	}
	if err := app.Navigate(r.Context(), uri); err != nil {
		s.Log.Error("prerender", "uri", uri, "err", err)
		s.OnError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := Render(w, r, DocumentComponent(app.Document())); err != nil {
		s.Log.Warn("write response", "uri", uri, "err", err)
	}
}

// Render writes a templ component to the HTTP response.
//
// Sets Content-Type to text/html and renders the component using the
// request's context.
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// DocumentComponent renders the current state of doc.
func DocumentComponent(doc *dom.Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, doc.HTML())
		return err
	})
}
