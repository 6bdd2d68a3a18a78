package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/RichardoC/chat-relay/internal/chat"
	"github.com/RichardoC/chat-relay/internal/models"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Conversations is the chat service as seen by the HTTP layer.
type Conversations interface {
	ListChats(ctx context.Context) ([]models.ChatSummary, error)
	CreateChat(ctx context.Context, title string) (*models.Chat, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	RenameChat(ctx context.Context, id, title string) error
	DeleteChat(ctx context.Context, id string) error
	SendMessage(ctx context.Context, id, text string) (*chat.Exchange, error)
}

type Handler struct {
	chats  Conversations
	logger *zap.Logger
}

func NewHandler(chats Conversations, logger *zap.Logger) *Handler {
	return &Handler{
		chats:  chats,
		logger: logger,
	}
}

type CreateChatRequest struct {
	Title string `json:"title"`
}

type RenameChatRequest struct {
	Title string `json:"title"`
}

type MessageRequest struct {
	Message string `json:"message"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.ListChats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Debug("Retrieved chats",
		zap.Int("count", len(chats)),
		zap.String("path", r.URL.Path))

	if chats == nil {
		chats = []models.ChatSummary{}
	}
	h.writeJSON(w, http.StatusOK, chats)
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	c, err := h.chats.GetChat(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	c, err := h.chats.CreateChat(r.Context(), req.Title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) RenameChat(w http.ResponseWriter, r *http.Request) {
	var req RenameChatRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	if err := h.chats.RenameChat(r.Context(), r.PathValue("id"), req.Title); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.DeleteChat(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	ex, err := h.chats.SendMessage(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ex)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst. An empty body is accepted only when
// allowEmpty is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
		return false
	}
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
	return false
}

// fail maps service errors onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Chat not found"})
	case errors.Is(err, models.ErrUpstream):
		h.logger.Error("Completion service failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		h.writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "Model request failed"})
	default:
		h.logger.Error("Request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
