// Package channels holds the messaging-platform adapters. Each adapter
// receives platform messages, hands them to the responder, and delivers
// the reply back on the same platform.
package channels

import "context"

// Responder answers one user query within a session. The orchestrator
// implements it.
type Responder interface {
	Respond(ctx context.Context, sessionID, query string) string
}

// Adapter is a long-running connection to one messaging platform.
type Adapter interface {
	// Start runs the adapter until the context is canceled or a fatal
	// error occurs.
	Start(ctx context.Context) error

	// Stop shuts the adapter down gracefully.
	Stop(ctx context.Context) error

	// Name identifies the platform, also used as the session id prefix.
	Name() string
}
