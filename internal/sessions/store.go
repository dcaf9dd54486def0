// Package sessions implements the session/metric store collaborator
// described in the spec's external-adapters boundary: create_session,
// get_session, append_message, record_metric.
package sessions

import (
	"context"

	"github.com/nexuscore/agentd/internal/monitor"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// Store is the interface for session persistence. Implementations own the
// Session; callers receive a defensive copy from Create/Get and must not
// mutate shared state directly.
type Store interface {
	// CreateSession starts a new session on the given channel/mode.
	CreateSession(ctx context.Context, channel chatmodel.Channel, mode string) (*chatmodel.Session, error)

	// GetSession returns a defensive copy of the session, or an error if it
	// does not exist.
	GetSession(ctx context.Context, id string) (*chatmodel.Session, error)

	// AppendMessage appends msg to the session's bounded history. Transactional:
	// callers may rely on the append being atomic with respect to concurrent
	// GetSession calls.
	AppendMessage(ctx context.Context, sessionID string, msg chatmodel.Message) error

	// RecordMetric attaches a request's resource summary (from the Request
	// Monitor, C9) to the session's history for later inspection.
	RecordMetric(ctx context.Context, sessionID string, summary monitor.Summary) error

	// List returns sessions matching opts, most recently updated first.
	List(ctx context.Context, opts ListOptions) ([]*chatmodel.Session, error)
}

// ListOptions configures session listing.
type ListOptions struct {
	Channel chatmodel.Channel
	Limit   int
	Offset  int
}

// ErrNotFound is returned by Store implementations when a session id is unknown.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "session not found" }
