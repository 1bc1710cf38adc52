package listen

import (
	"golang.org/x/net/html"

	"github.com/pthm/bindery/lib/dom"
)

// Record is one listener created by a listener directive.
type Record struct {
	Attr  string
	Node  *html.Node
	Event string
	ID    dom.ListenerID
}

// Registry holds the listeners of one controller. The whole set is
// dropped and rebuilt on every bind.
type Registry struct {
	records []Record
}

// Add records a registration.
func (r *Registry) Add(rec Record) {
	r.records = append(r.records, rec)
}

// Len returns the number of live records.
func (r *Registry) Len() int { return len(r.records) }

// Records returns a copy of the live records.
func (r *Registry) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Drain unregisters every recorded listener from doc and empties the
// registry. It returns the number of records removed.
func (r *Registry) Drain(doc *dom.Document) int {
	n := len(r.records)
	if doc != nil {
		for _, rec := range r.records {
			doc.RemoveEventListener(rec.Node, rec.ID)
		}
	}
	r.records = nil
	return n
}
