// Package collab holds default collaborator implementations: an HTTP
// client, key/value storage (in memory and bbolt) and a session
// authenticator over that storage.
package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by collaborators.
var (
	ErrNotFound     = errors.New("collab: key not found")
	ErrUnauthorized = errors.New("collab: invalid credentials")
)

// IsNotFound reports whether err is a storage miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Response is the result of an outbound request.
type Response struct {
	Status  int
	Header  http.Header
	Content []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the content into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Content, v); err != nil {
		return fmt.Errorf("collab: decode response: %w", err)
	}
	return nil
}
