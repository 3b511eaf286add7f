// Package oracle abstracts the text-completion backend used for page classification,
// persona synthesis, action suggestions and error summaries.
package oracle

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when the backend is unreachable or answers with a
	// non-success status.
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrAuth is returned when no credential is configured or the backend rejects it.
	ErrAuth = errors.New("oracle authentication failed")
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Oracle completes an ordered conversation into a single text reply.
// Implementations wrap every failure in ErrUnavailable or ErrAuth.
type Oracle interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, messages []Message) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// Disabled is the oracle used when AI features are turned off. Every call fails with
// ErrUnavailable so callers take their documented fallback.
type Disabled struct{}

// Complete always returns ErrUnavailable.
func (Disabled) Complete(ctx context.Context, messages []Message) (string, error) {
	return "", ErrUnavailable
}

// Ask sends a single user prompt.
func Ask(ctx context.Context, o Oracle, prompt string) (string, error) {
	return o.Complete(ctx, []Message{UserMessage(prompt)})
}

// IsRecoverable reports whether err is one of the oracle failures every call site
// is expected to absorb with a fallback.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrAuth)
}
