// Package bindery provides a declarative binding framework that connects
// an HTML document to Go controllers through b- directive attributes.
//
// bindery routes addresses to controllers, keeps each controller's model
// observable and re-renders the bound document whenever the model changes.
// Markup stays plain HTML; behaviour lives in Go.
//
// # Core Concepts
//
// Controllers embed *Controller and gain a Model, the shared Fridge and the
// collaborators the App injects on activation:
//
//	type Users struct {
//	    *bindery.Controller
//	    Selected string
//	}
//
//	func (u *Users) Init(ctx context.Context) error {
//	    return u.Model.Set("users", []string{"ada", "bob"})
//	}
//
//	func (u *Users) Pick(name string) {
//	    u.Set("selected", name)
//	}
//
// The lifecycle is formalized through optional hook interfaces run in a
// fixed order on every activation:
//   - Loader: Load(ctx, tx) runs first, with the route transaction
//   - Viewer: View() names the view loaded into the outlet
//   - Initializer: Init(ctx) seeds the model
//   - Renderer: Render(ctx) runs before the first full sweep
//   - PostRenderer: PostRender(ctx) runs after it
//   - Destroyer: Destroy(ctx) runs when navigating away
//
// A failing or panicking hook is reported to App.OnError as a HandlerError
// and never stops the hooks after it.
//
// # Directives
//
// Directives are attributes with the b- prefix. Every sweep runs six
// phases in order: removal of the previous clones, iteration (b-each),
// repetition (b-repeat), conditionals (b-if, b-elseif, b-else), writers
// (b-text, b-html) and attribute managers (b-value, b-class, b-style,
// b-attr-*, ...). Listener directives (b-click, b-bind, b-on, ...) are
// bound after the sweep. Clones substitute {{tokens}} from their loop
// variables:
//
//	<ul>
//	  <li b-each="users --as:user" b-click="pick('{{user}}')">{{user}}</li>
//	</ul>
//	<p b-if="selected">Picked <span b-text="selected"></span></p>
//
// Option suffixes follow " --", e.g. b-keyup="search() --key:enter".
//
// # Model Notifications
//
// Every model write renders and then broadcasts a Change to subscribers.
// With Config.ScopedRender only the directives reading the written root
// property are processed. Writes made during Init broadcast but do not
// render; the first full sweep follows Init.
//
// # Routing
//
//	app, _ := bindery.New(ctx, bindery.Options{Config: cfg})
//	app.Route("/users/:id", func() any { return &Users{} }, requireLogin)
//	app.Redirect("/people/:id", "/users/:id")
//	app.NotFound(bindery.NewStatic("404.html", nil))
//	app.Navigate(ctx, "/users/7?tab=posts")
//
// Route tables can also be loaded from YAML with App.LoadRoutesFile.
//
// # Serving
//
// Server prerenders addresses over HTTP with a fresh App per request, and
// the bridge package keeps one App per websocket connection for live
// sessions.
package bindery
