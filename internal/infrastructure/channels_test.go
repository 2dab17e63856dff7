package infrastructure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"kasbot/internal/entities"
)

func TestSuggestionKeyboard(t *testing.T) {
	kb, ok := SuggestionKeyboard([]entities.Suggestion{
		{Label: "فيصل", Send: "فيصل"},
		{Label: "الإسكندرية", Send: "الإسكندرية"},
		{Label: "طويل", Send: strings.Repeat("x", 70)},
		{Label: "المنصورة", Send: "المنصورة"},
	})
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	require.Len(t, kb.InlineKeyboard[1], 1)

	btn := kb.InlineKeyboard[1][0]
	assert.Equal(t, "المنصورة", btn.Text)
	require.NotNil(t, btn.CallbackData)
	assert.Equal(t, "s:المنصورة", *btn.CallbackData)

	_, ok = SuggestionKeyboard(nil)
	assert.False(t, ok)
}

func TestFormatSuggestionList(t *testing.T) {
	assert.Equal(t, "hello", FormatSuggestionList(entities.Reply{Text: "hello"}))

	got := FormatSuggestionList(entities.Reply{
		Text:        "اختار الفرع:",
		Suggestions: []entities.Suggestion{{Label: "فيصل"}, {Label: "الإسكندرية"}},
	})
	assert.Equal(t, "اختار الفرع:\n\n1) فيصل\n2) الإسكندرية", got)
}

func TestParseWhatsAppMessage(t *testing.T) {
	sender := types.JID{User: "201000000000", Server: types.DefaultUserServer}
	plain := "عنوان فرع فيصل"
	extended := "رقم المبيعات"

	from, text := ParseWhatsAppMessage(&events.Message{
		Info:    types.MessageInfo{MessageSource: types.MessageSource{Sender: sender}},
		Message: &waProto.Message{Conversation: &plain},
	})
	assert.Equal(t, "201000000000", from)
	assert.Equal(t, plain, text)

	_, text = ParseWhatsAppMessage(&events.Message{
		Info:    types.MessageInfo{MessageSource: types.MessageSource{Sender: sender}},
		Message: &waProto.Message{ExtendedTextMessage: &waProto.ExtendedTextMessage{Text: &extended}},
	})
	assert.Equal(t, extended, text)
}
