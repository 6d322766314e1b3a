// ABOUTME: Orchestrates one inbound message: resolve, drive the exchange, deliver
// ABOUTME: Owns rollback on failure and the user-visible error messaging

package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rkartside/docbridge/internal/chat"
	"github.com/rkartside/docbridge/internal/claude"
	"github.com/rkartside/docbridge/internal/conversation"
	"github.com/rkartside/docbridge/internal/docnum"
	"github.com/rkartside/docbridge/internal/observability"
	"github.com/rkartside/docbridge/internal/store"
	"github.com/rkartside/docbridge/internal/transcribe"
)

// User-visible messages, in the language of the chats.
const (
	msgGenericError    = "Error generando el documento. Intenta de nuevo."
	msgExhausted       = "No pude terminar el documento en esta ronda. Intenta de nuevo."
	msgVoiceReminder   = "Para que pueda escuchar tu nota de voz, responde directamente a uno de mis mensajes."
	msgTranscribing    = "Transcribiendo audio..."
	msgTranscribeError = "No pude transcribir el audio. Intenta de nuevo."
	msgEmptyTranscript = "No pude entender el audio. Intenta de nuevo o escribe tu mensaje."
)

// Sender delivers text and documents back to the chat platform.
type Sender interface {
	SendMessage(ctx context.Context, chatID, replyTo int64, text string) (int64, error)
	SendStatus(ctx context.Context, chatID, replyTo int64, text string) (int64, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	SendDocument(ctx context.Context, chatID, replyTo int64, filename string, content []byte) (int64, error)
}

// Exchanger drives one user turn against the AI service to a settled outcome.
type Exchanger interface {
	Exchange(ctx context.Context, turns []claude.Turn, containerID, systemExtra string) (*claude.ExchangeResult, error)
}

// ArtifactSource retrieves a generated artifact's filename and content.
type ArtifactSource interface {
	DownloadFile(ctx context.Context, fileID string) (string, []byte, error)
}

// HandlerParams collects the collaborators a Handler composes.
type HandlerParams struct {
	Bot           chat.Identity
	MaxReplyDepth int
	Conversations *conversation.Store
	Registry      store.Registry
	Assigner      *docnum.Assigner
	Driver        Exchanger
	Artifacts     ArtifactSource
	Sender        Sender
	Transcriber   transcribe.Transcriber
	Metrics       *observability.Metrics
	Logger        *slog.Logger
}

// Handler composes the resolver, the conversation store, the continuation
// driver and the extractor for each inbound message.
type Handler struct {
	bot           chat.Identity
	maxReplyDepth int
	conversations *conversation.Store
	registry      store.Registry
	assigner      *docnum.Assigner
	driver        Exchanger
	artifacts     ArtifactSource
	sender        Sender
	transcriber   transcribe.Transcriber
	metrics       *observability.Metrics
	logger        *slog.Logger

	remindedMu sync.Mutex
	reminded   map[int64]struct{}
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		bot:           p.Bot,
		maxReplyDepth: p.MaxReplyDepth,
		conversations: p.Conversations,
		registry:      p.Registry,
		assigner:      p.Assigner,
		driver:        p.Driver,
		artifacts:     p.Artifacts,
		sender:        p.Sender,
		transcriber:   p.Transcriber,
		metrics:       p.Metrics,
		logger:        p.Logger.With("component", "bot"),
		reminded:      make(map[int64]struct{}),
	}
}

// Spawn handles a message on its own goroutine with supervision: a panic in
// the handler is logged and never takes down the process or the handling of
// unrelated events.
func (h *Handler) Spawn(ctx context.Context, msg *chat.Message) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("message handler panicked", "panic", r)
			}
		}()
		h.HandleMessage(ctx, msg)
	}()
}

// HandleMessage runs the full pipeline for one validated message event.
func (h *Handler) HandleMessage(ctx context.Context, msg *chat.Message) {
	if msg == nil || (msg.Text == "" && msg.Voice == nil) {
		return
	}

	isVoice := msg.Voice != nil
	chatID := msg.ChatID

	// A non-voice message resets the one-time reminder for its chat.
	if !isVoice {
		h.clearReminded(chatID)
	}

	// Voice notes carry no mention spans; only ones sent as replies to the
	// bot participate. Others get a one-time nudge and stay out of any
	// conversation.
	if isVoice && !chat.RepliesToBot(msg, h.bot.UserID) {
		h.remindVoice(ctx, msg)
		return
	}

	key, trigger, err := chat.Resolve(msg, h.bot, h.maxReplyDepth)
	if err != nil {
		h.logger.Warn("reply chain resolution failed, ignoring message",
			"chat_id", chatID, "message_id", msg.ID, "error", err)
		h.metrics.MessagesTotal.WithLabelValues(chat.TriggerIgnored.String()).Inc()
		return
	}
	h.metrics.MessagesTotal.WithLabelValues(trigger.String()).Inc()
	if trigger == chat.TriggerIgnored {
		return
	}

	var userText string
	if !isVoice {
		userText = chat.StripMentions(msg, h.bot)
		if userText == "" {
			h.logger.Debug("message matched but extracted text is empty, ignoring",
				"chat_id", chatID, "message_id", msg.ID)
			return
		}
	}

	if trigger == chat.TriggerContinuation {
		key.RootMessageID = h.refineRoot(ctx, msg, key.RootMessageID)
	}

	if trigger == chat.TriggerNewConversation {
		h.logger.Info("new conversation",
			"chat_id", chatID, "message_id", msg.ID, "root_id", key.RootMessageID)
	} else {
		h.logger.Info("continue conversation",
			"chat_id", chatID, "message_id", msg.ID,
			"root_id", key.RootMessageID, "replied_to", msg.ReplyTo.ID)
	}

	// Register the user's message so future replies to it find this
	// conversation.
	if err := h.registry.RegisterMessage(ctx, chatID, msg.ID, key.RootMessageID); err != nil {
		h.logger.Warn("registering message failed", "error", err)
	}

	if isVoice {
		userText = h.transcribeVoice(ctx, msg)
		if userText == "" {
			return
		}
	}

	h.runExchange(ctx, msg, key, userText)
}

// refineRoot consults the registry for the replied-to message's root. The
// platform embeds only one level of reply nesting, so the chain walk alone
// bottoms out at the immediate parent; the registry knows the true origin.
func (h *Handler) refineRoot(ctx context.Context, msg *chat.Message, walked int64) int64 {
	repliedTo := msg.ReplyTo.ID
	root, ok, err := h.registry.FindRoot(ctx, msg.ChatID, repliedTo)
	if err != nil {
		h.logger.Warn("registry lookup failed, using walked root",
			"chat_id", msg.ChatID, "replied_to", repliedTo, "error", err)
		return walked
	}
	if !ok {
		h.logger.Warn("root not in registry, falling back to walked root",
			"chat_id", msg.ChatID, "replied_to", repliedTo, "root_id", walked)
		return walked
	}
	return root
}

// runExchange appends the user turn, drives the continuation loop, and
// delivers the outcome. The session is held exclusively for the whole
// exchange so concurrent events for one thread cannot interleave.
func (h *Handler) runExchange(ctx context.Context, msg *chat.Message, key chat.Key, userText string) {
	exchangeID := uuid.NewString()
	logger := h.logger.With("exchange_id", exchangeID, "key", key.String())

	sess, release := h.conversations.Acquire(key)
	defer release()
	defer h.metrics.ActiveConversations.Set(float64(h.conversations.Len()))

	systemExtra, err := h.assigner.Context(ctx, userText, time.Now().Year())
	if err != nil {
		// Numbering context is best-effort; the exchange proceeds without it.
		logger.Warn("building numbering context failed", "error", err)
		systemExtra = ""
	}

	sess.AppendTurn(claude.UserText(userText))
	committed := false
	defer func() {
		// Leaves the session in its pre-exchange state after a failure,
		// a timeout, cancellation, or a panic mid-exchange.
		if !committed {
			sess.RollbackTurn()
		}
	}()

	logger.Info("sending to service",
		"turns", len(sess.Turns), "container_id", sess.ContainerID)

	result, err := h.driver.Exchange(ctx, sess.Turns, sess.ContainerID, systemExtra)
	if err != nil {
		outcome, userMsg := "failed", msgGenericError
		if errors.Is(err, claude.ErrContinuationExhausted) {
			outcome, userMsg = "exhausted", msgExhausted
		}
		logger.Error("exchange failed", "outcome", outcome, "error", err)
		h.metrics.ExchangesTotal.WithLabelValues(outcome).Inc()
		if _, err := h.sender.SendMessage(ctx, msg.ChatID, msg.ID, userMsg); err != nil {
			logger.Warn("sending failure notice failed", "error", err)
		}
		return
	}

	sess.ContainerID = result.ContainerID
	sess.AppendTurn(claude.AssistantBlocks(result.Response.Content))
	committed = true

	h.metrics.ExchangesTotal.WithLabelValues("complete").Inc()
	h.metrics.ExchangeInvocations.Observe(float64(result.Invocations))

	extracted := claude.Extract(result.Response)
	logger.Info("exchange complete",
		"invocations", result.Invocations,
		"text_len", len(extracted.Text),
		"files", len(extracted.FileIDs),
		"container_id", result.ContainerID)

	h.deliver(ctx, msg, key, extracted, logger)
}

// deliver sends the normalized text and each retrieved artifact. A failed
// artifact is logged and skipped; it never aborts delivery of the text or
// of other artifacts.
func (h *Handler) deliver(ctx context.Context, msg *chat.Message, key chat.Key, extracted claude.Result, logger *slog.Logger) {
	if extracted.Text != "" {
		botMsgID, err := h.sender.SendMessage(ctx, msg.ChatID, msg.ID, extracted.Text)
		if err != nil {
			logger.Warn("sending text failed", "error", err)
		} else {
			h.registerSent(ctx, msg.ChatID, botMsgID, key.RootMessageID)
		}
	}

	for _, fileID := range extracted.FileIDs {
		filename, content, err := h.artifacts.DownloadFile(ctx, fileID)
		if err != nil {
			logger.Error("artifact retrieval failed", "file_id", fileID, "error", err)
			h.metrics.ArtifactFailures.Inc()
			continue
		}
		botMsgID, err := h.sender.SendDocument(ctx, msg.ChatID, msg.ID, filename, content)
		if err != nil {
			logger.Error("sending document failed", "file_id", fileID, "filename", filename, "error", err)
			h.metrics.ArtifactFailures.Inc()
			continue
		}
		logger.Info("document sent", "filename", filename, "bytes", len(content))
		h.metrics.ArtifactsDelivered.Inc()
		h.registerSent(ctx, msg.ChatID, botMsgID, key.RootMessageID)
	}
}

func (h *Handler) registerSent(ctx context.Context, chatID, messageID, rootID int64) {
	if messageID == 0 {
		return
	}
	if err := h.registry.RegisterMessage(ctx, chatID, messageID, rootID); err != nil {
		h.logger.Warn("registering sent message failed", "error", err)
	}
}

// transcribeVoice runs the status-message lifecycle around transcription and
// returns the transcript, or empty when handling should stop (the user has
// already been told why).
func (h *Handler) transcribeVoice(ctx context.Context, msg *chat.Message) string {
	if h.transcriber == nil {
		h.logger.Warn("voice message received but transcription is not configured",
			"chat_id", msg.ChatID, "message_id", msg.ID)
		return ""
	}

	statusID, err := h.sender.SendStatus(ctx, msg.ChatID, msg.ID, msgTranscribing)
	if err != nil {
		h.logger.Warn("sending transcription status failed", "error", err)
	}
	deleteStatus := func() {
		if statusID == 0 {
			return
		}
		if err := h.sender.DeleteMessage(ctx, msg.ChatID, statusID); err != nil {
			h.logger.Debug("deleting status message failed", "error", err)
		}
	}

	transcript, err := h.transcriber.TranscribeVoice(ctx, msg.Voice.FileID)
	deleteStatus()
	if err != nil {
		h.logger.Error("transcription failed", "chat_id", msg.ChatID, "error", err)
		h.metrics.TranscriptionsTotal.WithLabelValues("error").Inc()
		h.sendNotice(ctx, msg, msgTranscribeError)
		return ""
	}
	if transcript == "" {
		h.metrics.TranscriptionsTotal.WithLabelValues("empty").Inc()
		h.sendNotice(ctx, msg, msgEmptyTranscript)
		return ""
	}

	h.metrics.TranscriptionsTotal.WithLabelValues("ok").Inc()
	h.logger.Info("voice transcribed", "chat_id", msg.ChatID, "chars", len(transcript))
	return transcript
}

func (h *Handler) sendNotice(ctx context.Context, msg *chat.Message, text string) {
	if _, err := h.sender.SendMessage(ctx, msg.ChatID, msg.ID, text); err != nil {
		h.logger.Warn("sending notice failed", "error", err)
	}
}

// remindVoice nudges a chat, once, that voice notes must reply to the bot.
func (h *Handler) remindVoice(ctx context.Context, msg *chat.Message) {
	h.remindedMu.Lock()
	_, already := h.reminded[msg.ChatID]
	if !already {
		h.reminded[msg.ChatID] = struct{}{}
	}
	h.remindedMu.Unlock()
	if already {
		return
	}
	if _, err := h.sender.SendStatus(ctx, msg.ChatID, msg.ID, msgVoiceReminder); err != nil {
		h.logger.Warn("sending voice reminder failed", "error", err)
	}
}

func (h *Handler) clearReminded(chatID int64) {
	h.remindedMu.Lock()
	delete(h.reminded, chatID)
	h.remindedMu.Unlock()
}
