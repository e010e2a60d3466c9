package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// HandoffNotifier tells a human when the bot has promised a student a
// follow-up it cannot give itself.
type HandoffNotifier struct {
	target    string
	messenger Messenger
	logger    *slog.Logger
}

// NewHandoffNotifier returns a notifier that messages target. An empty
// target yields a notifier whose Notify does nothing.
func NewHandoffNotifier(messenger Messenger, target string, logger *slog.Logger) (*HandoffNotifier, error) {
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HandoffNotifier{
		target:    strings.TrimSpace(target),
		messenger: messenger,
		logger:    logger,
	}, nil
}

func (n *HandoffNotifier) Enabled() bool {
	return n.target != ""
}

func (n *HandoffNotifier) Notify(ctx context.Context, student, message string) {
	if !n.Enabled() {
		return
	}
	if err := sendText(ctx, n.messenger, n.target, handoffMessage(student, message)); err != nil {
		n.logger.WarnContext(ctx, "handoff notification failed", "student", student, "target", n.target, "err", err)
		return
	}
	n.logger.InfoContext(ctx, "handoff notification sent", "student", student, "target", n.target)
}

func handoffMessage(student, message string) string {
	return fmt.Sprintf(
		"Student needs help:\nPhone: %s\nMessage: %s\n\n"+
			"Reply to them from the WhatsApp Business app.\n"+
			"Send /pause %s here to pause the bot for this student.",
		student, message, student,
	)
}
