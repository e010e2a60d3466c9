package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"school-relay/internal/domain"
)

const (
	studentID = "+1555"
	notifyID  = "+1888"
)

type routerFixture struct {
	router    *Router
	answerer  *stubAnswerer
	messenger *fakeMessenger
	registry  *memRegistry
	notifier  *recordingNotifier
}

func newRouterFixture(t *testing.T, answer Answer, answerErr error, opts ...RouterOption) *routerFixture {
	t.Helper()
	f := &routerFixture{
		answerer:  &stubAnswerer{answer: answer, err: answerErr},
		messenger: &fakeMessenger{},
		registry:  newMemRegistry(),
		notifier:  &recordingNotifier{},
	}
	admin, err := NewAdminInterpreter(f.registry, f.messenger, discardLogger())
	require.NoError(t, err)
	opts = append([]RouterOption{
		WithAdmins(admin, adminID),
		WithNotifier(f.notifier),
		WithLogger(discardLogger()),
	}, opts...)
	f.router, err = NewRouter(f.answerer, f.messenger, f.registry, opts...)
	require.NoError(t, err)
	return f
}

func textMessage(id, sender, body string) domain.InboundMessage {
	return domain.InboundMessage{ID: id, Sender: sender, Type: domain.MessageTypeText, Body: body}
}

func TestNewRouter_ValidatesDependencies(t *testing.T) {
	_, err := NewRouter(nil, &fakeMessenger{}, newMemRegistry())
	require.Error(t, err)

	_, err = NewRouter(&stubAnswerer{}, nil, newMemRegistry())
	require.Error(t, err)

	_, err = NewRouter(&stubAnswerer{}, &fakeMessenger{}, nil)
	require.Error(t, err)

	_, err = NewRouter(&stubAnswerer{}, &fakeMessenger{}, newMemRegistry(), WithAdmins(nil, adminID))
	require.Error(t, err)
}

func TestRoute_StudentAnswered(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "Courses start every Monday."}, nil)

	d := f.router.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "When do courses start?"))

	require.Equal(t, DispositionAnswered, d)
	require.Equal(t, []string{"When do courses start?"}, f.answerer.questions)
	require.Equal(t, []sentMessage{{to: studentID, body: "Courses start every Monday."}}, f.messenger.sent)
	require.Equal(t, []string{"wamid.1"}, f.messenger.read)
	require.Empty(t, f.notifier.calls)
}

func TestRoute_BackendFailureSendsFallbackAndNotifies(t *testing.T) {
	f := newRouterFixture(t, Answer{}, newError(ErrorUpstream, "llm_error", errBoom))

	f.router.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "Is there parking?"))

	require.Equal(t, []string{domain.FallbackReply}, f.messenger.sentTo(studentID))
	require.Equal(t, []string{"wamid.1"}, f.messenger.read)
	require.Equal(t, []sentMessage{{to: studentID, body: "Is there parking?"}}, f.notifier.calls)
}

func TestRoute_HandoffMarkerAnywhereTriggersOneNotification(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "Our office will call within 24 business hours, thanks!"}, nil)

	f.router.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "Refund?"))

	require.Len(t, f.notifier.calls, 1)
	require.Equal(t, sentMessage{to: studentID, body: "Refund?"}, f.notifier.calls[0])
}

func TestRoute_StructuredHandoffFlagNotifies(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "Someone will be in touch.", Handoff: true}, nil)

	f.router.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "Refund?"))
	require.Len(t, f.notifier.calls, 1)
}

func TestRoute_HandoffWithoutNotifierConfigured(t *testing.T) {
	m := &fakeMessenger{}
	r, err := NewRouter(&stubAnswerer{err: errBoom}, m, newMemRegistry(), WithLogger(discardLogger()))
	require.NoError(t, err)

	r.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "hello"))
	require.Equal(t, []sentMessage{{to: studentID, body: domain.FallbackReply}}, m.sent)
}

func TestRoute_HandoffWithEmptyNotificationTarget(t *testing.T) {
	m := &fakeMessenger{}
	n, err := NewHandoffNotifier(m, "", discardLogger())
	require.NoError(t, err)
	r, err := NewRouter(&stubAnswerer{err: errBoom}, m, newMemRegistry(), WithNotifier(n), WithLogger(discardLogger()))
	require.NoError(t, err)

	r.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "hello"))
	require.Len(t, m.sent, 1, "only the fallback reply is sent")
}

func TestRoute_PausedStudentGetsSilenceButReadReceipt(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "unused"}, nil)
	f.registry.Add(studentID)

	d := f.router.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "Hello?"))

	require.Equal(t, DispositionPaused, d)
	require.Empty(t, f.answerer.questions)
	require.Empty(t, f.messenger.sent)
	require.Equal(t, []string{"wamid.1"}, f.messenger.read)
}

func TestRoute_AdminCommandIsNotForwarded(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "unused"}, nil)

	d := f.router.RouteMessage(context.Background(), textMessage("wamid.1", adminID, "/pause +1555"))

	require.Equal(t, DispositionAdmin, d)
	require.True(t, f.registry.Contains(studentID))
	require.Empty(t, f.answerer.questions)
	require.Equal(t, []string{"wamid.1"}, f.messenger.read)
	require.Equal(t, []string{"Bot paused for +1555. Send /resume +1555 to re-enable."}, f.messenger.sentTo(adminID))
}

func TestRoute_AdminUnrecognizedTextIsDropped(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "unused"}, nil)
	f.registry.Add(adminID)

	d := f.router.RouteMessage(context.Background(), textMessage("wamid.1", adminID, "what are the course fees?"))

	require.Equal(t, DispositionAdmin, d)
	require.Empty(t, f.answerer.questions)
	require.Empty(t, f.messenger.sent)
	require.Equal(t, []string{"wamid.1"}, f.messenger.read)
}

func TestRoute_NonAdminCommandIsTreatedAsQuestion(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "I can only help with school questions."}, nil)

	f.router.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "/pause +1555"))

	require.Equal(t, []string{"/pause +1555"}, f.answerer.questions)
	require.Empty(t, f.registry.List())
}

func TestRoute_PauseResumeFlow(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "answer"}, nil)
	ctx := context.Background()

	f.router.RouteMessage(ctx, textMessage("a1", adminID, "/pause +1555"))
	f.router.RouteMessage(ctx, textMessage("s1", studentID, "first"))
	f.router.RouteMessage(ctx, textMessage("a2", adminID, "/resume +1555"))
	f.router.RouteMessage(ctx, textMessage("s2", studentID, "second"))

	require.Equal(t, []string{"second"}, f.answerer.questions)
	require.False(t, f.registry.Contains(studentID))
	require.Equal(t, []string{"a1", "s1", "a2", "s2"}, f.messenger.read)
}

func TestRoute_NonTextMessageSkipped(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "unused"}, nil)

	d := f.router.RouteMessage(context.Background(), domain.InboundMessage{ID: "wamid.1", Sender: adminID, Type: "image"})

	require.Equal(t, DispositionSkipped, d)
	require.Empty(t, f.answerer.questions)
	require.Empty(t, f.messenger.sent)
	require.Empty(t, f.messenger.read)
}

func TestRoute_TransportFailuresAreIndependent(t *testing.T) {
	f := newRouterFixture(t, Answer{}, errBoom)
	f.messenger.sendErr = errBoom
	f.messenger.readErr = errBoom

	d := f.router.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "hello"))

	require.Equal(t, DispositionAnswered, d)
	require.Equal(t, []string{"wamid.1"}, f.messenger.read, "mark read is attempted after a failed send")
	require.Len(t, f.notifier.calls, 1, "handoff still runs after transport failures")
}

func TestRoute_ProcessesDeliveryInOrder(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "ok"}, nil)

	f.router.Route(context.Background(), []domain.InboundMessage{
		textMessage("m1", studentID, "one"),
		{ID: "m2", Sender: studentID, Type: "audio"},
		textMessage("m3", "+1777", "three"),
	})

	require.Equal(t, []string{"one", "three"}, f.answerer.questions)
	require.Equal(t, []string{"m1", "m3"}, f.messenger.read)
}

func TestRoute_Dedup(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "ok"}, nil, WithDeduper(&fakeDeduper{}))
	ctx := context.Background()

	require.Equal(t, DispositionAnswered, f.router.RouteMessage(ctx, textMessage("wamid.1", studentID, "hi")))
	require.Equal(t, DispositionDuplicate, f.router.RouteMessage(ctx, textMessage("wamid.1", studentID, "hi")))
	require.Len(t, f.answerer.questions, 1)
}

func TestRoute_DedupErrorFailsOpen(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "ok"}, nil, WithDeduper(&fakeDeduper{err: errBoom}))
	ctx := context.Background()

	f.router.RouteMessage(ctx, textMessage("wamid.1", studentID, "hi"))
	f.router.RouteMessage(ctx, textMessage("wamid.1", studentID, "hi"))
	require.Len(t, f.answerer.questions, 2)
}

func TestRoute_SimpleVariantHasNoAdmins(t *testing.T) {
	m := &fakeMessenger{}
	ans := &stubAnswerer{answer: Answer{Text: "ok"}}
	r, err := NewRouter(ans, m, newMemRegistry(), WithLogger(discardLogger()))
	require.NoError(t, err)
	require.False(t, r.IsAdmin(adminID))

	r.RouteMessage(context.Background(), textMessage("wamid.1", adminID, "/status"))
	require.Equal(t, []string{"/status"}, ans.questions)
}

func TestWithAdmins_IgnoresBlankIDs(t *testing.T) {
	r, err := NewRouter(&stubAnswerer{}, &fakeMessenger{}, newMemRegistry(), WithAdmins(&AdminInterpreter{}, " +1999 ", "", "  "))
	require.NoError(t, err)
	require.True(t, r.IsAdmin("+1999"))
	require.False(t, r.IsAdmin(""))
}

func TestRoute_SendCarriesDeadline(t *testing.T) {
	f := newRouterFixture(t, Answer{Text: "ok"}, nil)
	f.router.RouteMessage(context.Background(), textMessage("wamid.1", studentID, "hi"))
	require.True(t, f.messenger.deadline)
}
