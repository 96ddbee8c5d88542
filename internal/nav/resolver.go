package nav

import (
	"github.com/google/uuid"
)

// QueryParam is the query parameter carrying the active conversation id.
const QueryParam = "session"

// Resolver derives the active conversation id from the current location.
type Resolver struct {
	history *History
}

// NewResolver over the given history.
func NewResolver(history *History) *Resolver {
	return &Resolver{history: history}
}

// ActiveID returns the conversation id of the current location. When the
// location carries none, a fresh id is minted and written back in place, so
// repeated calls under the same location always agree and no history entry
// is created.
func (r *Resolver) ActiveID() string {
	location := r.history.Current()
	if id := location.Query.Get(QueryParam); id != "" {
		return id
	}

	id := uuid.New().String()
	location.Query.Set(QueryParam, id)
	r.history.Replace(location)
	return id
}

// PushNewID mints a fresh conversation id and navigates to it with a
// stack-pushing entry, so back/forward traverses conversations.
func (r *Resolver) PushNewID() string {
	location := r.history.Current()
	id := uuid.New().String()
	location.Query.Set(QueryParam, id)
	r.history.Push(location)
	return id
}
