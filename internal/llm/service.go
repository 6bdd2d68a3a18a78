package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/chat-relay/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/RichardoC/chat-relay/internal/llm"

// Service relays a chat history to an OpenAI-compatible completion endpoint
// (Ollama by default) and returns the assistant's reply.
type Service struct {
	llm     llms.Model
	model   string
	timeout time.Duration
	logger  *zap.Logger

	tracer   trace.Tracer
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

type Option func(*Service)

// WithTimeout bounds each completion call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(baseURL, token, model string, opts ...Option) (*Service, error) {
	client, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(client, model, opts...)
}

// NewWithModel wraps an already constructed langchaingo model.
func NewWithModel(m llms.Model, model string, opts ...Option) (*Service, error) {
	s := &Service{
		llm:    m,
		model:  model,
		logger: zap.NewNop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	s.duration, err = meter.Float64Histogram(
		"llm.complete.duration",
		metric.WithDescription("Completion call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	s.failures, err = meter.Int64Counter(
		"llm.complete.errors",
		metric.WithDescription("Failed completion calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	return s, nil
}

// Complete sends the whole ordered history, system prompt first, and returns
// the text of the single completion. Every failure of the remote side wraps
// models.ErrUpstream; nothing is retried.
func (s *Service) Complete(ctx context.Context, history []models.Message) (string, error) {
	content, err := toMessageContent(history)
	if err != nil {
		return "", err
	}

	ctx, span := s.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.model", s.model),
		attribute.Int("llm.messages", len(history)),
	))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.generate(ctx, content)
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(attribute.String("llm.model", s.model))
	s.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	if err != nil {
		s.failures.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Completion failed",
			zap.Error(err),
			zap.String("model", s.model),
			zap.Duration("elapsed", elapsed))
		return "", err
	}

	s.logger.Debug("Completion finished",
		zap.String("model", s.model),
		zap.Int("messages", len(history)),
		zap.Int("replyLength", len(reply)),
		zap.Duration("elapsed", elapsed))
	return reply, nil
}

func (s *Service) generate(ctx context.Context, content []llms.MessageContent) (string, error) {
	resp, err := s.llm.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate completion: %v", models.ErrUpstream, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("%w: empty response", models.ErrUpstream)
	}

	reply := resp.Choices[0].Content
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%w: blank reply", models.ErrUpstream)
	}
	return reply, nil
}

var chatRoles = map[string]llms.ChatMessageType{
	models.RoleSystem:    llms.ChatMessageTypeSystem,
	models.RoleUser:      llms.ChatMessageTypeHuman,
	models.RoleAssistant: llms.ChatMessageTypeAI,
}

func toMessageContent(history []models.Message) ([]llms.MessageContent, error) {
	out := make([]llms.MessageContent, 0, len(history))
	for i, m := range history {
		if !models.ValidRole(m.Role) {
			return nil, fmt.Errorf("%w: message %d has unknown role %q", models.ErrInvalidInput, i, m.Role)
		}
		out = append(out, llms.TextParts(chatRoles[m.Role], m.Content))
	}
	return out, nil
}
