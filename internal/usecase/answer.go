package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"school-relay/internal/domain"
)

// WhatsApp caps text bodies at 4096 characters.
const defaultMaxQuestion = 4096

type ParamBatchGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Answer is the backend's reply to one student question. Handoff reports that
// the backend could not answer and a human should follow up.
type Answer struct {
	Text    string
	Handoff bool
}

// AnswerService answers student questions using only the school information
// held in Parameter Store.
type AnswerService struct {
	params         ParamBatchGetter
	llm            LLMClient
	paramPrefix    string
	moderate       bool
	maxQuestionLen int

	cacheMu      sync.RWMutex
	cacheLoaded  bool
	knowledge    string
	pinnedPrompt string
	model        string
}

type AnswerOption func(*AnswerService)

// WithModeration screens each question through the moderation endpoint
// before answering it.
func WithModeration(enabled bool) AnswerOption {
	return func(s *AnswerService) {
		s.moderate = enabled
	}
}

func WithMaxQuestionLength(n int) AnswerOption {
	return func(s *AnswerService) {
		if n > 0 {
			s.maxQuestionLen = n
		}
	}
}

func NewAnswerService(p ParamBatchGetter, llm LLMClient, paramPrefix string, opts ...AnswerOption) (*AnswerService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	s := &AnswerService{
		params:         p,
		llm:            llm,
		paramPrefix:    paramPrefix,
		maxQuestionLen: defaultMaxQuestion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *AnswerService) Answer(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	if len([]rune(question)) > s.maxQuestionLen {
		return Answer{}, newError(ErrorInvalidInput, "question_too_long", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return Answer{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	if s.moderate {
		flagged, err := s.llm.Moderate(ctx, question)
		if err != nil {
			if status, ok := upstreamStatusCode(err); ok && status == 429 {
				return Answer{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
			}
			return Answer{}, newError(ErrorUpstream, "moderation_error", err)
		}
		if flagged {
			return Answer{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
		}
	}

	raw, err := s.llm.Chat(ctx, s.model, buildPromptMessages(
		promptContext{
			pinnedPrompt: s.pinnedPrompt,
			knowledge:    s.knowledge,
		},
		question,
	))
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return Answer{}, newError(ErrorRateLimited, "llm_rate_limited", err)
		}
		return Answer{}, newError(ErrorUpstream, "llm_error", err)
	}

	decision, err := parseSchoolAnswer(raw)
	if err != nil {
		return Answer{}, newError(ErrorUpstream, "llm_malformed_response", err)
	}
	if !decision.Answerable {
		return Answer{Text: domain.UnansweredReply, Handoff: true}, nil
	}
	return Answer{Text: strings.TrimSpace(decision.Answer)}, nil
}

func (s *AnswerService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	knowledge, pinnedPrompt, model, err := s.loadSSMParams(ctx)
	if err != nil {
		return err
	}

	s.knowledge = knowledge
	s.pinnedPrompt = pinnedPrompt
	s.model = model
	s.cacheLoaded = true
	return nil
}

func (s *AnswerService) loadSSMParams(ctx context.Context) (knowledge, pinnedPrompt, model string, err error) {
	var (
		knowledgeName = s.paramPrefix + "/context"
		pinnedName    = s.paramPrefix + "/pinned_prompt"
		modelName     = s.paramPrefix + "/config/model"
	)
	vals, err := s.params.GetParameters(ctx, knowledgeName, pinnedName, modelName)
	if err != nil {
		return "", "", "", fmt.Errorf("usecase: load answer config: %w", err)
	}
	knowledge = vals[knowledgeName]
	if strings.TrimSpace(knowledge) == "" {
		return "", "", "", errors.New("usecase: school context is empty")
	}
	model = strings.TrimSpace(vals[modelName])
	if model == "" {
		return "", "", "", errors.New("usecase: model is empty")
	}
	return knowledge, vals[pinnedName], model, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
