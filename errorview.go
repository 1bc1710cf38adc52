package bindery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/bindery/lib/dom"
)

// ErrorView returns a templ component describing err. With detail set
// the wrapped error chain is listed.
//
// The App renders it only when RenderError is called: failures are never
// shown on the page implicitly.
func ErrorView(err error, detail bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<section class="b-error" role="alert"><h1>`)
		sb.WriteString(html.EscapeString(errorTitle(err)))
		sb.WriteString(`</h1>`)
		if detail {
			sb.WriteString(`<ol class="b-error-chain">`)
			for e := err; e != nil; e = errors.Unwrap(e) {
				sb.WriteString(`<li>`)
				sb.WriteString(html.EscapeString(e.Error()))
				sb.WriteString(`</li>`)
			}
			sb.WriteString(`</ol>`)
		}
		sb.WriteString(`</section>`)
		_, werr := io.WriteString(w, sb.String())
		return werr
	})
}

func errorTitle(err error) string {
	switch {
	case err == nil:
		return "Unknown error"
	case IsNotFound(err):
		return "Not found"
	case IsCollaboratorError(err):
		return "Service unavailable"
	case IsConfigurationError(err):
		return "Configuration error"
	}
	return "Something went wrong"
}

// RenderError writes the error view into the outlet. Detail is shown in
// debug mode.
func (a *App) RenderError(ctx context.Context, err error) error {
	outlet := a.Outlet()
	if outlet == nil {
		return &CollaboratorError{Op: "render error", Err: errors.New("no outlet element")}
	}
	var sb strings.Builder
	if rerr := ErrorView(err, a.cfg.Debug).Render(ctx, &sb); rerr != nil {
		return fmt.Errorf("bindery: render error view: %w", rerr)
	}
	return dom.SetInnerHTML(outlet, sb.String())
}
