package cart

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSnapshot is returned by Backend.Load when nothing is stored for a session.
var ErrNoSnapshot = errors.New("no cart snapshot")

// Backend persists cart snapshots and broadcasts changes to other views of
// the same session.
type Backend interface {
	// Load returns the stored snapshot payload or ErrNoSnapshot.
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// Save replaces the stored snapshot payload.
	Save(ctx context.Context, sessionID string, data []byte) error

	// Publish broadcasts a payload to current subscribers of the session.
	Publish(ctx context.Context, sessionID string, data []byte) error

	// Subscribe delivers payloads published for the session until ctx is done,
	// at which point the channel is closed.
	Subscribe(ctx context.Context, sessionID string) (<-chan []byte, error)
}

func snapshotKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

func eventsChannel(sessionID string) string {
	return fmt.Sprintf("cart:%s:events", sessionID)
}
