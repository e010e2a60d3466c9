package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

const (
	commandPause  = "/pause"
	commandResume = "/resume"
	commandStatus = "/status"
)

// PauseStore is the subset of the pause registry the admin commands mutate.
type PauseStore interface {
	Add(id string)
	Remove(id string)
	List() []string
}

// AdminInterpreter executes /pause, /resume and /status for admin senders.
// Callers check admin membership before calling Handle.
type AdminInterpreter struct {
	registry  PauseStore
	messenger Messenger
	logger    *slog.Logger
}

func NewAdminInterpreter(registry PauseStore, messenger Messenger, logger *slog.Logger) (*AdminInterpreter, error) {
	if registry == nil {
		return nil, errors.New("usecase: pause registry must not be nil")
	}
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminInterpreter{registry: registry, messenger: messenger, logger: logger}, nil
}

// Handle runs the command in text and reports whether it was recognized.
// Unknown commands and /pause or /resume without a target are not handled
// and get no reply.
func (a *AdminInterpreter) Handle(ctx context.Context, sender, text string) bool {
	command, arg := splitCommand(text)

	switch {
	case command == commandPause && arg != "":
		a.registry.Add(arg)
		a.reply(ctx, sender, fmt.Sprintf("Bot paused for %s. Send /resume %s to re-enable.", arg, arg))
		a.logger.InfoContext(ctx, "admin paused bot", "admin", sender, "target", arg)
		return true

	case command == commandResume && arg != "":
		a.registry.Remove(arg)
		a.reply(ctx, sender, fmt.Sprintf("Bot resumed for %s.", arg))
		a.logger.InfoContext(ctx, "admin resumed bot", "admin", sender, "target", arg)
		return true

	case command == commandStatus:
		a.reply(ctx, sender, statusMessage(a.registry.List()))
		return true
	}
	return false
}

func (a *AdminInterpreter) reply(ctx context.Context, to, body string) {
	if err := sendText(ctx, a.messenger, to, body); err != nil {
		a.logger.WarnContext(ctx, "admin reply failed", "admin", to, "err", err)
	}
}

// splitCommand splits trimmed text on its first whitespace run. The command
// is lower-cased; the argument keeps any inner whitespace.
func splitCommand(text string) (command, arg string) {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return strings.ToLower(text), ""
	}
	return strings.ToLower(text[:i]), strings.TrimSpace(text[i:])
}

func statusMessage(paused []string) string {
	if len(paused) == 0 {
		return "Bot is active for all numbers."
	}
	return "Bot is paused for:\n" + strings.Join(paused, "\n")
}
