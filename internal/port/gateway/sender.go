// Package gateway defines the port for delivering messages to live agent
// sessions.
package gateway

import "context"

// Sender pushes a message to the session identified by sessionKey.
// Any error means the delivery did not happen; the caller must leave the
// notification queued for a later attempt.
type Sender interface {
	Send(ctx context.Context, sessionKey, message string) error
}
