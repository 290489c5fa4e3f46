// Package flows wraps single generative-AI calls behind typed, validated
// request/response contracts. Each flow makes one attempt; nothing is retried.
package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

// Operation names, used for prompts, metrics and logs.
const (
	OpAnalysisReport      = "analysis_report"
	OpFrontendSuggestions = "frontend_suggestions"
	OpBackendSuggestions  = "backend_suggestions"
	OpImage               = "image"
	OpAudio               = "audio"
	OpVideo               = "video"
	OpChat                = "chat"
	OpDeepResearch        = "deep_research"
	OpDebate              = "debate"
)

var (
	// ErrInvalidInput marks input that failed schema validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyResult marks a generation that produced nothing usable.
	ErrEmptyResult = errors.New("empty result")
	// ErrPollExhausted is returned when a long-running generation outlives its polling budget.
	ErrPollExhausted = errors.New("polling budget exhausted")
)

// Error carries the fixed, user-facing message of a failed flow.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && !errors.Is(e.Err, ErrEmptyResult) {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func emptyResult(op, message string) error {
	return &Error{Op: op, Message: message, Err: ErrEmptyResult}
}

func failed(op, message string, err error) error {
	return &Error{Op: op, Message: message, Err: err}
}

// PollPolicy bounds the polling of long-running operations.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// DefaultPollPolicy polls every 5 seconds for at most 5 minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: 5 * time.Second, MaxAttempts: 60, Timeout: 6 * time.Minute}
}

// Service exposes every flow.
type Service struct {
	llm      llm.Client
	validate *validator.Validate
	prompts  *Prompts
	poll     PollPolicy
	voice    string
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Service)

// WithPollPolicy overrides the video polling policy.
func WithPollPolicy(p PollPolicy) Option {
	return func(s *Service) { s.poll = p }
}

// WithPrompts overrides the embedded template catalog.
func WithPrompts(p *Prompts) Option {
	return func(s *Service) { s.prompts = p }
}

// WithDefaultVoice sets the prebuilt voice used when a request names none.
func WithDefaultVoice(voice string) Option {
	return func(s *Service) { s.voice = voice }
}

// WithSleep replaces the wait between polls.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = fn }
}

// New builds the flow service.
func New(client llm.Client, opts ...Option) (*Service, error) {
	s := &Service{
		llm:      client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		poll:     DefaultPollPolicy(),
		voice:    "Algenib",
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prompts == nil {
		p, err := DefaultPrompts()
		if err != nil {
			return nil, err
		}
		s.prompts = p
	}
	return s, nil
}

// Validate checks v against its struct tags and wraps failures in ErrInvalidInput.
func (s *Service) Validate(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// generateStructured renders the op's templates, asks for JSON and validates the result.
func (s *Service) generateStructured(ctx context.Context, op, failMessage string, data any, req llm.StructuredRequest, out any) error {
	system, prompt, err := s.prompts.Render(op, data)
	if err != nil {
		return err
	}
	req.Operation = op
	req.System = system
	req.Prompt = prompt

	logger := logging.FromContext(ctx)
	if err := s.llm.GenerateJSON(ctx, req, out); err != nil {
		if errors.Is(err, llm.ErrNoCandidate) {
			return emptyResult(op, failMessage)
		}
		return failed(op, failMessage, err)
	}
	if err := s.validate.Struct(out); err != nil {
		logger.LogWarnf(op, "model output failed validation: %v", err)
		return emptyResult(op, failMessage)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
