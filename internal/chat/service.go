// Package chat is the conversation engine: it owns chat lifecycle and
// message ordering, routes each chat to its configured model backend, and
// persists the transcript around every model call. The service holds no
// state between calls; every operation re-reads from the store.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rcallen/chatd/internal/backend"
	"github.com/rcallen/chatd/internal/db"
	"github.com/rcallen/chatd/internal/models"
)

// DefaultName labels chats renamed to an empty string.
const DefaultName = "Unnamed Chat"

// titleLimit bounds the auto-derived chat name.
const titleLimit = 50

type Service struct {
	store    db.ChatStore
	backends *backend.Registry
	log      *zap.Logger
	trimmer  *historyTrimmer

	defaultModel string

	now   func() time.Time
	newID func() string
}

func NewService(store db.ChatStore, backends *backend.Registry, log *zap.Logger, defaultModel string, historyBudget int) *Service {
	return &Service{
		store:        store,
		backends:     backends,
		log:          log,
		trimmer:      newHistoryTrimmer(historyBudget, log),
		defaultModel: defaultModel,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Create allocates a chat for owner. An empty model falls back to the
// configured default, then to the first model the local runtime serves.
// Nothing is visible to callers unless the insert succeeds.
func (s *Service) Create(ctx context.Context, owner, name, modelID string) (models.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New Chat"
	}

	model, err := s.resolveModel(ctx, modelID)
	if err != nil {
		return models.Chat{}, err
	}

	chat := models.Chat{
		ID:        s.newID(),
		Name:      name,
		Owner:     owner,
		Model:     model,
		Messages:  []models.Message{},
		CreatedAt: s.now(),
	}
	if err := s.store.Insert(chat); err != nil {
		return models.Chat{}, err
	}

	s.log.Info("chat created",
		zap.String("chat_id", chat.ID),
		zap.String("owner", owner),
		zap.String("model", model))
	return chat, nil
}

// Get returns the chat with its full message sequence.
func (s *Service) Get(ctx context.Context, chatID, caller string) (models.Chat, error) {
	chat, err := s.store.FindByID(chatID)
	if errors.Is(err, db.ErrNotFound) {
		return models.Chat{}, ErrNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	if chat.Owner != caller {
		return models.Chat{}, ErrForbidden
	}
	return chat, nil
}

// ListForOwner returns the caller's chats.
func (s *Service) ListForOwner(ctx context.Context, owner string) ([]models.Chat, error) {
	return s.store.FindByOwner(owner)
}

// Send appends the caller's message, generates a completion with the
// chat's model and appends the assistant's reply. When the backend fails,
// the user's message is still persisted — callers see their own turn even
// if the assistant never answered — and the backend's error comes back as
// an UpstreamError.
func (s *Service) Send(ctx context.Context, chatID, caller, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrInvalidInput
	}

	userMsg := models.Message{
		ID:        s.newID(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: s.now(),
	}

	var history []models.Message
	var model string
	err := s.store.Update(chatID, func(c *models.Chat) error {
		if c.Owner != caller {
			return ErrForbidden
		}
		c.Messages = append(c.Messages, userMsg)
		history = append([]models.Message(nil), c.Messages...)
		model = c.Model
		return nil
	})
	if errors.Is(err, db.ErrNotFound) {
		return models.Message{}, ErrNotFound
	}
	if err != nil {
		return models.Message{}, err
	}

	ch, err := s.backends.Generate(ctx, backend.Request{
		Model: model,
		Turns: s.trimmer.trim(toTurns(history)),
	})
	var content string
	if err == nil {
		content, err = backend.Collect(ch)
	}
	if err != nil {
		s.log.Warn("model backend failed",
			zap.String("chat_id", chatID),
			zap.String("model", model),
			zap.Error(err))
		return models.Message{}, &UpstreamError{Err: err}
	}

	assistantMsg := models.Message{
		ID:        s.newID(),
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: s.now(),
	}
	err = s.store.Update(chatID, func(c *models.Chat) error {
		c.Messages = append(c.Messages, assistantMsg)
		applyAutoTitle(c)
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return assistantMsg, nil
}

// SendStream is Send for streaming backends: each chunk is handed to emit
// as it arrives, with nothing buffered server-side. The transcript is
// persisted only after the stream finishes — a caller that disconnects
// mid-stream leaves no partial assistant message behind, and nothing at
// all is persisted on cancellation.
func (s *Service) SendStream(ctx context.Context, chatID, caller, text string, emit func(chunk string) error) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrInvalidInput
	}

	chat, err := s.Get(ctx, chatID, caller)
	if err != nil {
		return models.Message{}, err
	}

	userMsg := models.Message{
		ID:        s.newID(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: s.now(),
	}
	turns := s.trimmer.trim(toTurns(append(chat.Messages, userMsg)))

	ch, err := s.backends.Generate(ctx, backend.Request{
		Model:  chat.Model,
		Turns:  turns,
		Stream: true,
	})
	if err != nil {
		s.persistUserTurn(chatID, userMsg)
		return models.Message{}, &UpstreamError{Err: err}
	}

	var full strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			s.persistUserTurn(chatID, userMsg)
			return models.Message{}, &UpstreamError{Err: chunk.Err}
		}
		if err := emit(chunk.Content); err != nil {
			// Caller went away; abandon the upstream stream and keep the
			// transcript untouched.
			go drain(ch)
			return models.Message{}, err
		}
		full.WriteString(chunk.Content)
	}
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}

	assistantMsg := models.Message{
		ID:        s.newID(),
		Role:      models.RoleAssistant,
		Content:   full.String(),
		Timestamp: s.now(),
	}
	err = s.store.Update(chatID, func(c *models.Chat) error {
		c.Messages = append(c.Messages, userMsg, assistantMsg)
		applyAutoTitle(c)
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return assistantMsg, nil
}

// Rename sets an explicit name, which the auto-title rule never
// overrides afterwards. Empty names fall back to a default label. A
// missing or foreign chat is a no-op.
func (s *Service) Rename(ctx context.Context, chatID, caller, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		newName = DefaultName
	}
	err := s.store.Update(chatID, func(c *models.Chat) error {
		if c.Owner != caller {
			return nil
		}
		c.Name = newName
		c.Renamed = true
		return nil
	})
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	return err
}

// Clear empties the message sequence of an owned chat, preserving the
// chat shell (id, name, model, owner, creation time).
func (s *Service) Clear(ctx context.Context, chatID, caller string) error {
	err := s.store.Update(chatID, func(c *models.Chat) error {
		if c.Owner != caller {
			return nil
		}
		c.Messages = []models.Message{}
		return nil
	})
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	return err
}

// Delete removes an owned chat. Absent or foreign ids are silent no-ops,
// so deletes are idempotent.
func (s *Service) Delete(ctx context.Context, chatID, caller string) error {
	return s.store.Delete(chatID, caller)
}

func (s *Service) resolveModel(ctx context.Context, modelID string) (string, error) {
	if modelID != "" {
		return modelID, nil
	}
	if s.defaultModel != "" {
		return s.defaultModel, nil
	}
	if local := s.backends.Local(); local != nil {
		names, err := local.ListModels(ctx)
		if err == nil && len(names) > 0 {
			return names[0], nil
		}
	}
	return "", &UpstreamError{Err: errors.New("no model available")}
}

func (s *Service) persistUserTurn(chatID string, msg models.Message) {
	err := s.store.Update(chatID, func(c *models.Chat) error {
		c.Messages = append(c.Messages, msg)
		return nil
	})
	if err != nil {
		s.log.Error("failed to persist user message", zap.String("chat_id", chatID), zap.Error(err))
	}
}

// applyAutoTitle derives the chat name from the first user message at the
// moment the first exchange completes, unless the owner renamed the chat.
func applyAutoTitle(c *models.Chat) {
	if len(c.Messages) != 2 || c.Renamed {
		return
	}
	for _, m := range c.Messages {
		if m.Role == models.RoleUser {
			c.Name = deriveTitle(m.Content)
			return
		}
	}
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}

func toTurns(msgs []models.Message) []backend.Turn {
	turns := make([]backend.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, backend.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func drain(ch <-chan backend.Chunk) {
	for range ch {
	}
}
