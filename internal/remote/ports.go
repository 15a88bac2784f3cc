// Package remote defines the boundary to the remote datastore the sync
// executor replays mutations against.
package remote

import (
	"context"
	"errors"

	"kudi/internal/mutation"
)

// ErrUnavailable marks a transport-level outage (no connectivity, timeout,
// remote down). A flush pass stops when it sees one, instead of burning an
// attempt on every queued record; anything else is a per-record rejection
// that must not block later, unrelated mutations.
var ErrUnavailable = errors.New("remote store unavailable")

// Unavailable reports whether err represents a transport outage.
func Unavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Store applies a single mutation to the remote datastore: one keyed upsert,
// insert, or delete per kind, addressed by the payload's primary key.
// Applying the same record twice must have the same effect as applying it
// once; the executor cannot distinguish "never sent" from "sent but response
// lost".
type Store interface {
	Apply(ctx context.Context, rec *mutation.Record) error
}
