package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kasbot/internal/entities"
	"kasbot/internal/observability"
)

const (
	suggestionCallbackPrefix = "s:"
	maxCallbackDataBytes     = 64
	buttonsPerRow            = 2
)

// TelegramClient is the Telegram front-end. Suggestions become inline
// buttons whose callback posts the suggestion text back as a message.
type TelegramClient struct {
	Bot    *tgbotapi.BotAPI
	logger *observability.Logger
}

func NewTelegramClient(token string, debug bool, logger *observability.Logger) (*TelegramClient, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return &TelegramClient{Bot: bot, logger: logger.WithComponent("telegram")}, nil
}

func (t *TelegramClient) SendMessage(_ context.Context, to, content string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", to, err)
	}
	_, err = t.Bot.Send(tgbotapi.NewMessage(chatID, content))
	return err
}

func (t *TelegramClient) SendReply(_ context.Context, to string, reply entities.Reply) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", to, err)
	}
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.DisableWebPagePreview = true
	if kb, ok := SuggestionKeyboard(reply.Suggestions); ok {
		msg.ReplyMarkup = kb
	}
	_, err = t.Bot.Send(msg)
	return err
}

// SuggestionKeyboard lays suggestions out two per row. Suggestions whose
// callback data would exceed Telegram's limit are left out.
func SuggestionKeyboard(suggestions []entities.Suggestion) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, s := range suggestions {
		data := suggestionCallbackPrefix + s.Send
		if len(data) > maxCallbackDataBytes {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(s.Label, data))
		if len(row) == buttonsPerRow {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

// Listen polls for updates until ctx is cancelled. Text messages and button
// presses are passed to handle; /start arrives with start=true.
func (t *TelegramClient) Listen(ctx context.Context, handle func(ctx context.Context, msg entities.Message, start bool)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.Bot.GetUpdatesChan(u)
	t.logger.Info().Str("bot", t.Bot.Self.UserName).Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.Bot.StopReceivingUpdates()
			t.logger.Info().Msg("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if msg, start, ok := t.toMessage(update); ok {
				go handle(ctx, msg, start)
			}
		}
	}
}

func (t *TelegramClient) toMessage(update tgbotapi.Update) (entities.Message, bool, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if _, err := t.Bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			t.logger.Warn().Err(err).Msg("answer callback failed")
		}
		if cb.Message == nil || !strings.HasPrefix(cb.Data, suggestionCallbackPrefix) {
			return entities.Message{}, false, false
		}
		return entities.Message{
			ID:       cb.ID,
			From:     strconv.FormatInt(cb.Message.Chat.ID, 10),
			Content:  strings.TrimPrefix(cb.Data, suggestionCallbackPrefix),
			Platform: "telegram",
		}, false, true
	}

	m := update.Message
	if m == nil {
		return entities.Message{}, false, false
	}
	msg := entities.Message{
		ID:       strconv.Itoa(m.MessageID),
		From:     strconv.FormatInt(m.Chat.ID, 10),
		Content:  m.Text,
		Platform: "telegram",
	}
	if m.IsCommand() {
		if m.Command() != "start" {
			return entities.Message{}, false, false
		}
		msg.Content = ""
		return msg, true, true
	}
	if strings.TrimSpace(m.Text) == "" {
		return entities.Message{}, false, false
	}
	return msg, false, true
}
