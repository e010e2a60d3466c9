package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
)

type sentMessage struct {
	to   string
	body string
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	read     []string
	sendErr  error
	readErr  error
	deadline bool
}

func (f *fakeMessenger) SendText(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return f.sendErr
}

func (f *fakeMessenger) MarkRead(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, messageID)
	return f.readErr
}

func (f *fakeMessenger) sentTo(to string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.to == to {
			out = append(out, m.body)
		}
	}
	return out
}

// memRegistry mirrors pause.Registry so usecase tests stay self-contained.
type memRegistry struct {
	ids map[string]struct{}
}

func newMemRegistry(ids ...string) *memRegistry {
	r := &memRegistry{ids: map[string]struct{}{}}
	for _, id := range ids {
		r.ids[id] = struct{}{}
	}
	return r
}

func (r *memRegistry) Add(id string) { r.ids[id] = struct{}{} }
func (r *memRegistry) Remove(id string) { delete(r.ids, id) }

func (r *memRegistry) Contains(id string) bool {
	_, ok := r.ids[id]
	return ok
}

func (r *memRegistry) List() []string {
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type stubAnswerer struct {
	answer    Answer
	err       error
	questions []string
}

func (s *stubAnswerer) Answer(_ context.Context, question string) (Answer, error) {
	s.questions = append(s.questions, question)
	return s.answer, s.err
}

type recordingNotifier struct {
	calls []sentMessage
}

func (n *recordingNotifier) Notify(_ context.Context, student, message string) {
	n.calls = append(n.calls, sentMessage{to: student, body: message})
}

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (d *fakeDeduper) MarkProcessed(_ context.Context, messageID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[messageID] {
		return false, nil
	}
	d.seen[messageID] = true
	return true, nil
}

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
