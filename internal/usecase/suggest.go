package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"mystery-message/internal/domain"
	"mystery-message/internal/telemetry"
)

const maxPromptLength = 500

type ParamGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

type ChatStreamer interface {
	StreamChat(ctx context.Context, model string, messages []domain.ChatMessage, onDelta func(string) error) error
}

// SuggestService streams generated message suggestions.
type SuggestService struct {
	params      ParamGetter
	llm         ChatStreamer
	paramPrefix string

	cacheMu          sync.RWMutex
	cacheLoaded      bool
	openaiModel      string
	suggestionPrompt string
}

type SuggestInput struct {
	Prompt string
}

func NewSuggestService(p ParamGetter, llm ChatStreamer, paramPrefix string) (*SuggestService, error) {
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
	return &SuggestService{params: p, llm: llm, paramPrefix: paramPrefix}, nil
}

// Suggest streams the generated text to onDelta as it arrives. The text is a
// '||'-separated list; splitting is left to the consumer.
func (s *SuggestService) Suggest(ctx context.Context, in SuggestInput, onDelta func(string) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "usecase.Suggest", attribute.Int("prompt_length", len(in.Prompt)))
	defer func() { telemetry.EndSpan(span, err) }()

	if onDelta == nil {
		return newError(ErrorInternal, "missing_delta_sink", nil)
	}
	hint := strings.TrimSpace(in.Prompt)
	if utf8.RuneCountInString(hint) > maxPromptLength {
		return newError(ErrorInvalidInput, "prompt_too_long", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return newError(ErrorInternal, "ssm_load_error", err)
	}

	s.cacheMu.RLock()
	model, prompt := s.openaiModel, s.suggestionPrompt
	s.cacheMu.RUnlock()

	if err := s.llm.StreamChat(ctx, model, buildSuggestionMessages(prompt, hint), onDelta); err != nil {
		return upstreamError("openai", err)
	}
	return nil
}

func (s *SuggestService) ensureConfig(ctx context.Context) error {
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

	model, prompt, err := s.loadSSMParams(ctx)
	if err != nil {
		return err
	}
	s.openaiModel = model
	s.suggestionPrompt = prompt
	s.cacheLoaded = true
	return nil
}

func (s *SuggestService) loadSSMParams(ctx context.Context) (openaiModel, prompt string, err error) {
	modelName := s.paramPrefix + "/config/openai_model"
	promptName := s.paramPrefix + "/config/suggestion_prompt"

	values, err := s.params.GetParameters(ctx, modelName, promptName)
	if err != nil {
		return "", "", fmt.Errorf("usecase: load suggestion config: %w", err)
	}
	openaiModel = strings.TrimSpace(values[modelName])
	if openaiModel == "" {
		return "", "", fmt.Errorf("usecase: load openai model: parameter %q is missing", modelName)
	}
	prompt = strings.TrimSpace(values[promptName])
	if prompt == "" {
		prompt = defaultSuggestionPrompt()
	}
	return openaiModel, prompt, nil
}
