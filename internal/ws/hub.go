package ws

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
)

// PushNotifier sends push notifications. nil disables pushes.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	convRepo   *repository.ConversationRepository
	msgRepo    *repository.MessageRepository
	userRepo   *repository.UserRepository
	typingRepo *repository.TypingRepository
	pushClient PushNotifier
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	typingRepo *repository.TypingRepository,
	maxConns int,
	pushClient PushNotifier,
) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		userRepo:   userRepo,
		typingRepo: typingRepo,
		pushClient: pushClient,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.userRepo.SetOnline(ctx, c.userID, true); err != nil {
		logger.Errorf("ws set online user=%s: %v", c.userID, err)
	}
	h.broadcastUserStatus(c.userID, true)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()

	if lastClient {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.userRepo.SetOnline(ctx, c.userID, false); err != nil {
			logger.Errorf("ws set offline user=%s: %v", c.userID, err)
		}
		h.broadcastUserStatus(c.userID, false)
	}
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventNewMessage:
		h.handleNewMessage(ctx, c, msg)
	case EventTyping:
		h.handleTyping(ctx, c, msg)
	case EventMessageRead:
		h.handleMessageRead(ctx, c, msg)
	case EventMessageDeleted:
		h.handleDeleteMessage(ctx, c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	content := model.NormalizeContent(msg.Content)
	if msg.ConversationID == "" || (content == "" && msg.FileURL == "") {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "conversation_id and content required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conv, err := h.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "conversation not found"})
		return
	}
	role := conv.ParticipantRole(c.userID)
	if role == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not a participant"})
		return
	}
	if !conv.AcceptsMessages() {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "conversation is closed"})
		return
	}

	msgType := model.MessageTypeText
	if msg.MessageType != "" {
		if !msg.MessageType.Valid() {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "invalid message type"})
			return
		}
		msgType = msg.MessageType
	}

	// File names often arrive with "+" instead of spaces (URL encoding);
	// store them with spaces.
	fileName := strings.TrimSpace(strings.ReplaceAll(msg.FileName, "+", " "))
	if content == "" {
		content = fileName
	}
	now := time.Now().UTC()
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: msg.ConversationID,
		SenderID:       c.userID,
		SenderType:     role,
		Content:        content,
		MessageType:    msgType,
		FileURL:        msg.FileURL,
		FileName:       fileName,
		FileSize:       msg.FileSize,
		FileType:       msg.FileType,
		CreatedAt:      now,
	}

	if err := h.msgRepo.Create(ctx, m); err != nil {
		logger.Errorf("ws save message conversation=%s user=%s: %v", msg.ConversationID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to save message"})
		return
	}

	sender, err := h.userRepo.GetByID(ctx, c.userID)
	if err != nil {
		logger.Errorf("ws get sender user=%s: %v", c.userID, err)
	} else {
		pub := sender.ToPublic()
		m.Sender = &pub
	}

	// The first message in an accepted conversation moves the collaboration
	// to active.
	if conv.Status == model.ConversationAccepted {
		if err := h.convRepo.UpdateStatus(ctx, conv.ID, model.ConversationAccepted, model.ConversationActive); err == nil {
			statusOut := OutgoingMessage{Type: EventConversationUpdated, Payload: ConversationStatusPayload{
				ConversationID: conv.ID,
				Status:         model.ConversationActive,
				Blocked:        conv.Blocked,
			}}
			h.sendToUser(conv.InfluencerID, statusOut)
			h.sendToUser(conv.AdvertiserID, statusOut)
		}
	}

	out := OutgoingMessage{Type: EventNewMessage, Payload: m}
	h.sendToUser(conv.InfluencerID, out)
	h.sendToUser(conv.AdvertiserID, out)

	// Push the recipient (never the sender).
	if h.pushClient != nil {
		senderName := ""
		if m.Sender != nil {
			senderName = m.Sender.Username
		}
		if senderName == "" {
			senderName = "New message"
		}
		body := m.Content
		if m.MessageType != model.MessageTypeText || body == "" {
			body = "Attachment"
		}
		body = truncatePreview(body, 120)
		data := map[string]string{"conversation_id": msg.ConversationID, "message_id": m.ID}
		recipient := conv.OtherParty(c.userID)
		go h.pushClient.Notify(context.Background(), recipient, senderName, body, data)
	}
}

func (h *Hub) handleDeleteMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleDeleteMessage", time.Now())()
	if msg.MessageID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	original, err := h.msgRepo.GetByID(ctx, msg.MessageID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message not found"})
		return
	}
	if original.SenderID != c.userID {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "can only delete own messages"})
		return
	}

	if err := h.msgRepo.SoftDelete(ctx, msg.MessageID, c.userID); err != nil {
		logger.Errorf("ws delete message %s: %v", msg.MessageID, err)
		return
	}

	conv, err := h.convRepo.GetByID(ctx, original.ConversationID)
	if err != nil {
		return
	}
	out := OutgoingMessage{Type: EventMessageDeleted, Payload: MessageDeletedPayload{
		MessageID:      msg.MessageID,
		ConversationID: original.ConversationID,
	}}
	h.sendToUser(conv.InfluencerID, out)
	h.sendToUser(conv.AdvertiserID, out)
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ConversationID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	conv, err := h.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return
	}
	role := conv.ParticipantRole(c.userID)
	if role == "" {
		return
	}

	// Persist so the REST typing endpoint and reconnecting clients agree;
	// stale rows expire on read.
	if err := h.typingRepo.Set(ctx, msg.ConversationID, c.userID, role, msg.IsTyping); err != nil {
		logger.Errorf("ws persist typing conversation=%s user=%s: %v", msg.ConversationID, c.userID, err)
	}

	out := OutgoingMessage{
		Type: EventTyping,
		Payload: TypingPayload{
			ConversationID: msg.ConversationID,
			UserID:         c.userID,
			Role:           role,
			IsTyping:       msg.IsTyping,
		},
	}
	h.sendToUser(conv.OtherParty(c.userID), out)
}

func (h *Hub) handleMessageRead(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ConversationID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conv, err := h.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil || conv.ParticipantRole(c.userID) == "" {
		return
	}

	ids, err := h.msgRepo.MarkRead(ctx, msg.ConversationID, c.userID)
	if err != nil {
		logger.Errorf("ws mark read conversation=%s user=%s: %v", msg.ConversationID, c.userID, err)
		return
	}
	if len(ids) == 0 {
		return
	}

	now := time.Now().UTC()
	out := OutgoingMessage{
		Type: EventMessageRead,
		Payload: MessageReadPayload{
			ConversationID: msg.ConversationID,
			UserID:         c.userID,
			MessageIDs:     ids,
			ReadAt:         &now,
		},
	}
	h.sendToUser(conv.OtherParty(c.userID), out)
}

func (h *Hub) broadcastUserStatus(userID string, online bool) {
	evType := EventUserOffline
	if online {
		evType = EventUserOnline
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peers, err := h.convRepo.PeerIDs(ctx, userID)
	if err != nil {
		logger.Errorf("ws get peers for status broadcast user=%s: %v", userID, err)
		return
	}

	out := OutgoingMessage{
		Type: evType,
		Payload: UserStatusPayload{
			UserID: userID,
			Online: online,
		},
	}
	for _, uid := range peers {
		h.sendToUser(uid, out)
	}
}

// BroadcastToConversation sends an event to both parties of a conversation.
func (h *Hub) BroadcastToConversation(ctx context.Context, conversationID string, msg OutgoingMessage) {
	defer logger.DeferLogDuration("ws.BroadcastToConversation", time.Now())()
	conv, err := h.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		logger.Errorf("ws broadcast to conversation %s: %v", conversationID, err)
		return
	}
	h.sendToUser(conv.InfluencerID, msg)
	h.sendToUser(conv.AdvertiserID, msg)
}

// NotifyConversationCreated pushes a conversation_created event to a user.
func (h *Hub) NotifyConversationCreated(userID string, conv *model.Conversation) {
	h.sendToUser(userID, OutgoingMessage{Type: EventConversationCreated, Payload: conv})
}

// SendToUser delivers an event to every connection of a user.
func (h *Hub) SendToUser(userID string, msg OutgoingMessage) {
	h.sendToUser(userID, msg)
}

func (h *Hub) sendToUser(userID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// truncatePreview caps s at max bytes without cutting through a multi-byte
// rune, appending an ellipsis when anything was dropped.
func truncatePreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
