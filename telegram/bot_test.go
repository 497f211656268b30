package telegram

import (
	"sort"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpay/internal"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (s *recordingSender) chats() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, m := range s.sent {
		ids = append(ids, m.ChatID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, `a\_b\*c\.d`, sanitize("a_b*c.d"))
	assert.Equal(t, "plain text", sanitize("plain text"))
}

func TestComposeAlert(t *testing.T) {
	text, err := composeAlert(&internal.FeatureLogMessage{
		Time:    "2024-01-01 12:00:00",
		Feature: "error",
		Id:      "0012024010112000000001",
		Text:    "provision: connection refused",
	})
	require.NoError(t, err)
	assert.Contains(t, text, `*error*`)
	assert.Contains(t, text, "0012024010112000000001")
	assert.Contains(t, text, `provision: connection refused`)
}

func TestSendFansOutToConfiguredChats(t *testing.T) {
	api := &recordingSender{}
	bot := newBot(api, []int64{10, 20})
	bot.Start()

	err := bot.Send(&internal.FeatureLogMessage{Feature: "error", Text: "boom"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(api.chats()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{10, 20}, api.chats())
}

func TestCommandsFromUnknownChatsAreRefused(t *testing.T) {
	api := &recordingSender{}
	bot := newBot(api, []int64{10})

	bot.handleCommand(99, "stranger", "start")
	assert.ElementsMatch(t, []int64{10}, bot.recipients())

	bot.handleCommand(10, "ops", "stop")
	assert.Empty(t, bot.recipients())
	bot.handleCommand(99, "stranger", "stop")
	bot.handleCommand(10, "ops", "start")
	assert.ElementsMatch(t, []int64{10}, bot.recipients())

	bot.Start()
	require.Eventually(t, func() bool { return len(api.chats()) == 4 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{10, 10, 99, 99}, api.chats())

	api.mu.Lock()
	defer api.mu.Unlock()
	for _, m := range api.sent {
		if m.ChatID == 99 {
			assert.Contains(t, m.Text, "not allowed")
		}
	}
}
