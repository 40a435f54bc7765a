package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
	"github.com/sponsorhub/internal/ws"
)

type MessageHandler struct {
	msgRepo    *repository.MessageRepository
	convRepo   *repository.ConversationRepository
	userRepo   *repository.UserRepository
	typingRepo *repository.TypingRepository
	hub        *ws.Hub
}

func NewMessageHandler(
	msgRepo *repository.MessageRepository,
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
	typingRepo *repository.TypingRepository,
	hub *ws.Hub,
) *MessageHandler {
	return &MessageHandler{msgRepo: msgRepo, convRepo: convRepo, userRepo: userRepo, typingRepo: typingRepo, hub: hub}
}

// GetMessages pages through a conversation's history. ?before=<message_id>
// walks backwards; each page comes back oldest first.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	var before *model.Message
	if beforeID := r.URL.Query().Get("before"); beforeID != "" {
		m, err := h.msgRepo.GetByID(r.Context(), beforeID)
		if err != nil || m.ConversationID != conv.ID {
			writeError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = m
	}

	messages, err := h.msgRepo.List(r.Context(), conv.ID, before, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	Content     string            `json:"content"`
	MessageType model.MessageType `json:"messageType"`
	FileURL     string            `json:"fileUrl"`
	FileName    string            `json:"fileName"`
	FileSize    int64             `json:"fileSize"`
	FileType    string            `json:"fileType"`
}

// SendMessage posts a message over REST. The WebSocket path is preferred;
// this one backs clients without a socket.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}
	if !conv.AcceptsMessages() {
		writeError(w, http.StatusConflict, "conversation is closed")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	content := model.NormalizeContent(req.Content)
	if content == "" && req.FileURL == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	msgType := model.MessageTypeText
	if req.MessageType != "" {
		if !req.MessageType.Valid() {
			writeError(w, http.StatusBadRequest, "invalid message type")
			return
		}
		msgType = req.MessageType
	}
	if content == "" {
		content = req.FileName
	}

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       userID,
		SenderType:     conv.ParticipantRole(userID),
		Content:        content,
		MessageType:    msgType,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		FileType:       req.FileType,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		logger.Errorf("send message conversation=%s user=%s: %v", conv.ID, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	if sender, err := h.userRepo.GetByID(r.Context(), userID); err == nil {
		pub := sender.ToPublic()
		m.Sender = &pub
	}

	// The first message in an accepted conversation moves the collaboration
	// to active, same as on the socket path. The conditional update makes the
	// two paths race-safe against each other.
	if conv.Status == model.ConversationAccepted {
		if err := h.convRepo.UpdateStatus(r.Context(), conv.ID, model.ConversationAccepted, model.ConversationActive); err == nil {
			conv.Status = model.ConversationActive
			if h.hub != nil {
				h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingMessage{
					Type: ws.EventConversationUpdated,
					Payload: ws.ConversationStatusPayload{
						ConversationID: conv.ID,
						Status:         conv.Status,
						Blocked:        conv.Blocked,
					},
				})
			}
		}
	}

	if h.hub != nil {
		h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingMessage{
			Type:    ws.EventNewMessage,
			Payload: m,
		})
	}
	writeSuccess(w, http.StatusCreated, m)
}

// MarkAsRead marks all of the peer's messages read. Idempotent.
func (h *MessageHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}

	ids, err := h.msgRepo.MarkRead(r.Context(), conv.ID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark as read")
		return
	}
	if len(ids) > 0 && h.hub != nil {
		now := time.Now().UTC()
		h.hub.SendToUser(conv.OtherParty(userID), ws.OutgoingMessage{
			Type: ws.EventMessageRead,
			Payload: ws.MessageReadPayload{
				ConversationID: conv.ID,
				UserID:         userID,
				MessageIDs:     ids,
				ReadAt:         &now,
			},
		})
	}
	writeSuccess(w, http.StatusOK, map[string]int{"marked": len(ids)})
}

// DeleteMessage soft-deletes the caller's own message.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if m.SenderID != userID {
		writeError(w, http.StatusForbidden, "can only delete own messages")
		return
	}
	if err := h.msgRepo.SoftDelete(r.Context(), messageID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusConflict, "message already deleted")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	if h.hub != nil {
		h.hub.BroadcastToConversation(r.Context(), m.ConversationID, ws.OutgoingMessage{
			Type: ws.EventMessageDeleted,
			Payload: ws.MessageDeletedPayload{
				MessageID:      messageID,
				ConversationID: m.ConversationID,
			},
		})
	}
	writeSuccess(w, http.StatusOK, nil)
}

// GetUnreadCount returns the total unread badge for the caller.
func (h *MessageHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	n, err := h.msgRepo.UnreadTotal(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count unread")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

type setTypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// SetTyping records the caller's typing flag and pushes it to the peer.
func (h *MessageHandler) SetTyping(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}

	var req setTypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role := conv.ParticipantRole(userID)
	if err := h.typingRepo.Set(r.Context(), conv.ID, userID, role, req.IsTyping); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set typing")
		return
	}
	if h.hub != nil {
		h.hub.SendToUser(conv.OtherParty(userID), ws.OutgoingMessage{
			Type: ws.EventTyping,
			Payload: ws.TypingPayload{
				ConversationID: conv.ID,
				UserID:         userID,
				Role:           role,
				IsTyping:       req.IsTyping,
			},
		})
	}
	writeSuccess(w, http.StatusOK, nil)
}

// GetTyping returns who is typing right now; rows older than the staleness
// window are already filtered out.
func (h *MessageHandler) GetTyping(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}
	statuses, err := h.typingRepo.ListActive(r.Context(), conv.ID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get typing status")
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *MessageHandler) loadParticipant(w http.ResponseWriter, r *http.Request) (*model.Conversation, bool) {
	conversationID := chi.URLParam(r, "conversationId")
	userID := middleware.GetUserID(r.Context())

	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return nil, false
	}
	if conv.ParticipantRole(userID) == "" {
		writeError(w, http.StatusForbidden, "not a participant")
		return nil, false
	}
	return conv, true
}
