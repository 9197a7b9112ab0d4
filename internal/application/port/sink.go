package port

import (
	"context"
	"errors"
)

// ErrMessageGone is returned by Edit when the target message was deleted or
// can no longer be edited. Callers fall back to sending a new message.
var ErrMessageGone = errors.New("message to edit not found")

// Publisher is the chat-side output of a session.
type Publisher interface {
	// Send posts a new message and returns its id.
	Send(ctx context.Context, session, text string) (messageID string, err error)
	// Edit replaces the text of a previously sent message. Editing with
	// unchanged text is not an error.
	Edit(ctx context.Context, session, messageID, text string) error
}
