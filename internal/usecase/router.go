package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"school-relay/internal/domain"
)

// Disposition records what the router did with one inbound message.
type Disposition string

const (
	DispositionSkipped   Disposition = "skipped"
	DispositionDuplicate Disposition = "duplicate"
	DispositionAdmin     Disposition = "admin"
	DispositionPaused    Disposition = "paused"
	DispositionAnswered  Disposition = "answered"
)

type Answerer interface {
	Answer(ctx context.Context, question string) (Answer, error)
}

type PauseChecker interface {
	Contains(id string) bool
}

type AdminHandler interface {
	Handle(ctx context.Context, sender, text string) bool
}

type Notifier interface {
	Notify(ctx context.Context, student, message string)
}

// Deduper remembers message IDs so provider redeliveries are not answered
// twice. MarkProcessed reports true the first time it sees an ID.
type Deduper interface {
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// Router decides, per inbound text message, between the admin commands, the
// paused silence and the answer backend, then performs the side effects.
// Without admins and a notifier it is a plain question/answer relay.
type Router struct {
	answerer  Answerer
	messenger Messenger
	paused    PauseChecker
	logger    *slog.Logger

	admins   map[string]struct{}
	admin    AdminHandler
	notifier Notifier
	deduper  Deduper
}

type RouterOption func(*Router)

// WithAdmins routes messages from the given identifiers to handler instead
// of the answer backend. Blank identifiers are ignored.
func WithAdmins(handler AdminHandler, ids ...string) RouterOption {
	return func(r *Router) {
		r.admin = handler
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				r.admins[id] = struct{}{}
			}
		}
	}
}

func WithNotifier(n Notifier) RouterOption {
	return func(r *Router) {
		r.notifier = n
	}
}

func WithDeduper(d Deduper) RouterOption {
	return func(r *Router) {
		r.deduper = d
	}
}

func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRouter(answerer Answerer, messenger Messenger, paused PauseChecker, opts ...RouterOption) (*Router, error) {
	if answerer == nil {
		return nil, errors.New("usecase: answerer must not be nil")
	}
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if paused == nil {
		return nil, errors.New("usecase: pause registry must not be nil")
	}
	r := &Router{
		answerer:  answerer,
		messenger: messenger,
		paused:    paused,
		logger:    slog.Default(),
		admins:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.admins) > 0 && r.admin == nil {
		return nil, errors.New("usecase: admin handler must not be nil when admins are configured")
	}
	return r, nil
}

// Route processes the messages of one webhook delivery in order.
func (r *Router) Route(ctx context.Context, msgs []domain.InboundMessage) {
	for _, msg := range msgs {
		r.RouteMessage(ctx, msg)
	}
}

// RouteMessage handles a single message. It never fails: every outbound
// call is best-effort and its error is only logged.
func (r *Router) RouteMessage(ctx context.Context, msg domain.InboundMessage) Disposition {
	if !msg.IsText() {
		return DispositionSkipped
	}
	if r.isDuplicate(ctx, msg.ID) {
		r.logger.InfoContext(ctx, "duplicate delivery, skipping", "message_id", msg.ID, "sender", msg.Sender)
		return DispositionDuplicate
	}

	r.logger.InfoContext(ctx, "message received", "message_id", msg.ID, "sender", msg.Sender)
	r.logger.DebugContext(ctx, "message body", "message_id", msg.ID, "body", msg.Body)

	if r.IsAdmin(msg.Sender) {
		if !r.admin.Handle(ctx, msg.Sender, msg.Body) {
			r.logger.InfoContext(ctx, "unrecognized admin command dropped", "sender", msg.Sender)
		}
		r.markRead(ctx, msg)
		return DispositionAdmin
	}

	if r.paused.Contains(msg.Sender) {
		r.logger.InfoContext(ctx, "bot paused for sender, skipping", "sender", msg.Sender)
		r.markRead(ctx, msg)
		return DispositionPaused
	}

	answer, err := r.answerer.Answer(ctx, msg.Body)
	if err != nil {
		r.logger.ErrorContext(ctx, "answer backend failed", "sender", msg.Sender, "code", CodeOf(err), "err", err)
		answer = Answer{Text: domain.FallbackReply}
	}

	if err := sendText(ctx, r.messenger, msg.Sender, answer.Text); err != nil {
		r.logger.WarnContext(ctx, "reply failed", "sender", msg.Sender, "err", err)
	}
	r.markRead(ctx, msg)

	if r.notifier != nil && needsHandoff(answer) {
		r.notifier.Notify(ctx, msg.Sender, msg.Body)
	}
	return DispositionAnswered
}

func (r *Router) IsAdmin(id string) bool {
	_, ok := r.admins[id]
	return ok
}

func (r *Router) markRead(ctx context.Context, msg domain.InboundMessage) {
	if err := markRead(ctx, r.messenger, msg.ID); err != nil {
		r.logger.WarnContext(ctx, "mark read failed", "message_id", msg.ID, "err", err)
	}
}

// isDuplicate fails open: a dedup store error lets the message through.
func (r *Router) isDuplicate(ctx context.Context, messageID string) bool {
	if r.deduper == nil || messageID == "" {
		return false
	}
	first, err := r.deduper.MarkProcessed(ctx, messageID)
	if err != nil {
		r.logger.WarnContext(ctx, "dedup check failed", "message_id", messageID, "err", err)
		return false
	}
	return !first
}

// needsHandoff matches the marker textually as well as the structured flag,
// so canned replies (the fallback included) keep escalating.
func needsHandoff(a Answer) bool {
	return a.Handoff || strings.Contains(a.Text, domain.HandoffMarker)
}
