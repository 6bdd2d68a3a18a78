package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/chat-relay/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultAssistantPrompt = "I am a smart AI assistant.\nWhat can I help you with?"
	DefaultTitle           = "New chat"
)

// Store persists chats and their message logs.
type Store interface {
	ListChats(ctx context.Context) ([]models.ChatSummary, error)
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	RenameChat(ctx context.Context, id, title string, at time.Time) error
	DeleteChat(ctx context.Context, id string) error
	AppendMessages(ctx context.Context, id string, msgs []models.Message, title *string, at time.Time) error
}

// Completer turns a conversation history into the assistant's next reply.
type Completer interface {
	Complete(ctx context.Context, history []models.Message) (string, error)
}

// Exchange is the outcome of one user turn.
type Exchange struct {
	Reply        string `json:"reply"`
	TitleChanged bool   `json:"titleChanged"`
}

type Service struct {
	store     Store
	completer Completer
	logger    *zap.Logger
	locks     *keyedMutex

	prompt       string
	defaultTitle string
	now          func() time.Time
	newID        func() string
}

type Option func(*Service)

func WithAssistantPrompt(p string) Option {
	return func(s *Service) { s.prompt = p }
}

func WithDefaultTitle(t string) Option {
	return func(s *Service) { s.defaultTitle = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, completer Completer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		completer:    completer,
		logger:       logger,
		locks:        newKeyedMutex(),
		prompt:       DefaultAssistantPrompt,
		defaultTitle: DefaultTitle,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListChats(ctx context.Context) ([]models.ChatSummary, error) {
	return s.store.ListChats(ctx)
}

// CreateChat starts a conversation seeded with the assistant prompt.
func (s *Service) CreateChat(ctx context.Context, title string) (*models.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = s.defaultTitle
	}
	now := s.now().UTC()

	chat := &models.Chat{
		ID:        s.newID(),
		Title:     title,
		UpdatedAt: now,
		Messages: []models.Message{{
			Role:      models.RoleSystem,
			Content:   s.prompt,
			CreatedAt: now,
		}},
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	s.logger.Info("Created chat", zap.String("chatID", chat.ID), zap.String("title", chat.Title))
	return chat, nil
}

func (s *Service) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	return s.store.GetChat(ctx, id)
}

func (s *Service) RenameChat(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is empty", models.ErrInvalidInput)
	}

	// Waits out an in-flight exchange so its auto-title cannot overwrite this one.
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.store.RenameChat(ctx, id, title, s.now().UTC())
}

func (s *Service) DeleteChat(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.DeleteChat(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted chat", zap.String("chatID", id))
	return nil
}

// AppendUserMessage stores a user turn on its own and returns the chat's
// updated message log. The first user turn also renames the chat.
func (s *Service) AppendUserMessage(ctx context.Context, id, text string) ([]models.Message, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, fmt.Errorf("%w: message is empty", models.ErrInvalidInput)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	chat, err := s.store.GetChat(ctx, id)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	msg := models.Message{Role: models.RoleUser, Content: text, CreatedAt: now}
	title := autoTitle(chat, text)

	if err := s.store.AppendMessages(ctx, id, []models.Message{msg}, title, now); err != nil {
		return nil, false, fmt.Errorf("failed to save user message: %w", err)
	}
	return append(chat.Messages, msg), title != nil, nil
}

func (s *Service) AppendAssistantMessage(ctx context.Context, id, text string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	now := s.now().UTC()
	msg := models.Message{Role: models.RoleAssistant, Content: text, CreatedAt: now}
	if err := s.store.AppendMessages(ctx, id, []models.Message{msg}, nil, now); err != nil {
		return fmt.Errorf("failed to save assistant message: %w", err)
	}
	return nil
}

// SendMessage runs one full turn: the user's text plus the stored history go to
// the completer, and only once a reply arrives are the user turn, the reply and
// any new title written, in a single transaction. A failed completion leaves
// the chat exactly as it was so the client can resend.
func (s *Service) SendMessage(ctx context.Context, id, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", models.ErrInvalidInput)
	}

	// Held across the completion call: two racing first messages must not
	// both retitle the chat.
	unlock := s.locks.Lock(id)
	defer unlock()

	chat, err := s.store.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}

	userMsg := models.Message{Role: models.RoleUser, Content: text, CreatedAt: s.now().UTC()}
	history := append(chat.Messages, userMsg)

	reply, err := s.completer.Complete(ctx, history)
	if err != nil {
		s.logger.Warn("Completion failed, turn discarded",
			zap.String("chatID", id),
			zap.Error(err))
		return nil, err
	}

	now := s.now().UTC()
	assistantMsg := models.Message{Role: models.RoleAssistant, Content: reply, CreatedAt: now}
	title := autoTitle(chat, text)

	if err := s.store.AppendMessages(ctx, id, []models.Message{userMsg, assistantMsg}, title, now); err != nil {
		return nil, fmt.Errorf("failed to save exchange: %w", err)
	}

	s.logger.Debug("Exchange saved",
		zap.String("chatID", id),
		zap.Int("historyLength", len(history)+1),
		zap.Bool("titleChanged", title != nil))
	return &Exchange{Reply: reply, TitleChanged: title != nil}, nil
}

// autoTitle returns the title to apply for text, or nil when the chat already
// has a user turn.
func autoTitle(chat *models.Chat, text string) *string {
	if chat.HasUserMessage() {
		return nil
	}
	t := models.DeriveTitle(text)
	return &t
}
