package usecases

import (
	"context"
	"strconv"
	"strings"
	"time"

	"kasbot/internal/entities"
	"kasbot/internal/infrastructure"
	"kasbot/internal/interfaces"
	"kasbot/internal/observability"
)

const slowDownReply = "برجاء الانتظار قليلاً قبل إرسال رسالة أخرى."

// busyChatWait bounds how long a message waits for the chat's previous turn.
const busyChatWait = 10 * time.Second

// ChannelService runs dialog turns for messenger chats. Unlike the HTTP
// client, a messenger cannot carry the context itself, so the service keeps
// it per chat in the session manager.
type ChannelService struct {
	responder interfaces.Responder
	sessions  *infrastructure.SessionManager
	limiter   *infrastructure.MessageRateLimiter
	logger    *observability.Logger
	turnWait  time.Duration
}

// NewChannelService wires a responder to sessions; limiter may be nil.
func NewChannelService(responder interfaces.Responder, sessions *infrastructure.SessionManager, limiter *infrastructure.MessageRateLimiter, logger *observability.Logger) *ChannelService {
	if logger == nil {
		logger = observability.Nop()
	}
	return &ChannelService{
		responder: responder,
		sessions:  sessions,
		limiter:   limiter,
		logger:    logger.WithComponent("channel"),
		turnWait:  busyChatWait,
	}
}

// HandleMessage answers one incoming chat message through out. start resets
// the chat first. A message that arrives mid-turn waits for that turn.
func (s *ChannelService) HandleMessage(ctx context.Context, msg entities.Message, start bool, out interfaces.Messenger) error {
	log := s.logger.WithContext(ctx).With().Str("platform", msg.Platform).Str("chat", msg.From).Logger()

	if s.limiter != nil && !s.limiter.Allow(msg.Platform+":"+msg.From) {
		log.Warn().Msg("chat rate limited")
		return out.SendMessage(ctx, msg.From, slowDownReply)
	}
	if start {
		s.sessions.Reset(msg.From)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.turnWait)
	session, err := s.sessions.Acquire(waitCtx, msg.From)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Msg("previous turn still running, asking chat to wait")
		return out.SendMessage(ctx, msg.From, slowDownReply)
	}
	msg.Content = pickSuggestion(msg.Content, session.Suggestions)

	reply, err := s.responder.Respond(ctx, msg, session.Context)
	if err != nil {
		s.sessions.Abort(msg.From)
		log.Error().Err(err).Msg("dialog turn failed")
		return out.SendMessage(ctx, msg.From, TemporaryErrorReply)
	}
	s.sessions.Finish(msg.From, reply)

	if err := out.SendReply(ctx, msg.From, reply); err != nil {
		log.Error().Err(err).Msg("send reply failed")
		return err
	}
	return nil
}

// pickSuggestion maps a bare number to the suggestion it labels in a
// numbered list; anything else passes through.
func pickSuggestion(content string, suggestions []entities.Suggestion) string {
	n, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil || n < 1 || n > len(suggestions) {
		return content
	}
	return suggestions[n-1].Send
}
