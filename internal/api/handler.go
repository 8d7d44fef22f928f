package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rcallen/chatd/internal/backend"
	"github.com/rcallen/chatd/internal/chat"
	"github.com/rcallen/chatd/internal/db"
	"github.com/rcallen/chatd/internal/models"
	"github.com/rcallen/chatd/internal/user"
)

type Handler struct {
	chats    *chat.Service
	users    *user.Service
	backends *backend.Registry
	logger   *zap.Logger
}

func NewHandler(chats *chat.Service, users *user.Service, backends *backend.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		chats:    chats,
		users:    users,
		backends: backends,
		logger:   logger,
	}
}

type createChatRequest struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type registerRootRequest struct {
	Username       string `json:"username" binding:"required"`
	CredentialHash string `json:"credential_hash" binding:"required"`
}

type addUserRequest struct {
	Username        string `json:"username" binding:"required"`
	CredentialHash  string `json:"credential_hash" binding:"required"`
	ModelPreference string `json:"model_preference"`
}

type preferencesRequest struct {
	ModelPreference string `json:"model_preference" binding:"required"`
}

type chatSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListForOwner(c.Request.Context(), caller(c).Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	summaries := make([]chatSummary, 0, len(chats))
	for _, ch := range chats {
		summaries = append(summaries, chatSummary{
			ID:        ch.ID,
			Name:      ch.Name,
			Model:     ch.Model,
			Messages:  len(ch.Messages),
			CreatedAt: ch.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u := caller(c)
	model := req.Model
	if model == "" {
		model = u.ModelPreference
	}
	created, err := h.chats.Create(c.Request.Context(), u.Username, req.Name, model)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetChat(c *gin.Context) {
	found, err := h.chats.Get(c.Request.Context(), c.Param("chatId"), caller(c).Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chats.Send(c.Request.Context(), c.Param("chatId"), caller(c).Username, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// StreamMessage relays model output to the caller as it arrives, one
// chunk per write, with no server-side buffering ahead of the first byte.
func (h *Handler) StreamMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Headers wait for the first chunk so a failure raised before any
	// output still goes out as a regular JSON error response.
	started := false
	_, err := h.chats.SendStream(c.Request.Context(), c.Param("chatId"), caller(c).Username, req.Content, func(chunk string) error {
		if !started {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header("Cache-Control", "no-cache")
			started = true
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		if !started {
			h.writeError(c, err)
			return
		}
		// Headers are gone; the best we can do is log and cut the stream.
		h.logger.Warn("stream aborted",
			zap.String("chat_id", c.Param("chatId")),
			zap.Error(err))
	}
}

func (h *Handler) RenameChat(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.chats.Rename(c.Request.Context(), c.Param("chatId"), caller(c).Username, req.Name); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) ClearChat(c *gin.Context) {
	if err := h.chats.Clear(c.Request.Context(), c.Param("chatId"), caller(c).Username); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) DeleteChat(c *gin.Context) {
	if err := h.chats.Delete(c.Request.Context(), c.Param("chatId"), caller(c).Username); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.backends.ListModels(c.Request.Context())})
}

func (h *Handler) BackendStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"backends": h.backends.Statuses(c.Request.Context())})
}

// RegisterRoot is the only unauthenticated account operation: it
// provisions the root user at first run and refuses ever after.
func (h *Handler) RegisterRoot(c *gin.Context) {
	var req registerRootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.RegisterRoot(req.Username, req.CredentialHash); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) ListUsers(c *gin.Context) {
	members, err := h.users.ListMembers(caller(c).Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *Handler) AddUser(c *gin.Context) {
	var req addUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.AddMember(caller(c).Username, req.Username, req.CredentialHash, req.ModelPreference); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) RemoveUser(c *gin.Context) {
	if err := h.users.RemoveMember(caller(c).Username, c.Param("username")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) SetPreferences(c *gin.Context) {
	u := caller(c)
	target := c.Param("username")
	if target != u.Username && u.Role != models.AccountRoot {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.SetModelPreference(target, req.ModelPreference); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// writeError maps the error taxonomy onto HTTP statuses. Upstream
// failures keep the backend's description verbatim for diagnostics.
func (h *Handler) writeError(c *gin.Context, err error) {
	var upstream *chat.UpstreamError
	switch {
	case errors.Is(err, chat.ErrNotFound), errors.Is(err, user.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrForbidden), errors.Is(err, user.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrInvalidInput), errors.Is(err, user.ErrInvalidInput),
		errors.Is(err, user.ErrUserExists), errors.Is(err, user.ErrRootExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": upstream.Err.Error()})
	case errors.Is(err, db.ErrStorage):
		h.logger.Error("storage failure",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
