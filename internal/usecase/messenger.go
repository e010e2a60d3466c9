package usecase

import (
	"context"
	"time"
)

const (
	sendTimeout     = 30 * time.Second
	markReadTimeout = 10 * time.Second
)

// Messenger is the outbound side of the messaging channel. Both calls are
// best-effort: callers log failures and move on.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	MarkRead(ctx context.Context, messageID string) error
}

func sendText(ctx context.Context, m Messenger, to, body string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return m.SendText(ctx, to, body)
}

func markRead(ctx context.Context, m Messenger, messageID string) error {
	ctx, cancel := context.WithTimeout(ctx, markReadTimeout)
	defer cancel()
	return m.MarkRead(ctx, messageID)
}
