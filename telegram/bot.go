package telegram

import (
	"fmt"
	"log"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"tpay/internal"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TgBot implements internal.MessageService; error events are pushed to the
// configured chats. Only those chats may use /start and /stop, which mute and
// unmute alerts for the chat.
type TgBot struct {
	api     sender
	bot     *tgbotapi.BotAPI
	mutex   sync.Mutex
	chatIDs map[int64]bool
	muted   map[int64]bool
	send    chan MessageContent
}

type MessageContent struct {
	ChatID int64
	Text   string
}

func NewBot(apiKey string, chatIDs []int64) (*TgBot, error) {
	api, err := tgbotapi.NewBotAPI(apiKey)
	if err != nil {
		return nil, err
	}
	tgBot := newBot(api, chatIDs)
	tgBot.bot = api
	return tgBot, nil
}

func newBot(api sender, chatIDs []int64) *TgBot {
	tgBot := &TgBot{
		api:     api,
		chatIDs: make(map[int64]bool),
		muted:   make(map[int64]bool),
		send:    make(chan MessageContent, 100),
	}
	for _, id := range chatIDs {
		tgBot.chatIDs[id] = true
	}
	return tgBot
}

func (b *TgBot) Start() {
	go b.sendPump()
	if b.bot != nil {
		go b.updatesPump()
	}
}

// Send queues an alert for every recipient; it never blocks the logger
func (b *TgBot) Send(message internal.Message) error {
	text, err := composeAlert(message)
	if err != nil {
		return err
	}
	for _, id := range b.recipients() {
		select {
		case b.send <- MessageContent{ChatID: id, Text: text}:
		default:
			return fmt.Errorf("bot: send queue is full, alert dropped")
		}
	}
	return nil
}

func (b *TgBot) recipients() []int64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	ids := make([]int64, 0, len(b.chatIDs))
	for id := range b.chatIDs {
		if !b.muted[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (b *TgBot) updatesPump() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.bot.GetUpdatesChan(u)
	if err != nil {
		log.Printf("bot: error getting updates: %v", err)
		return
	}
	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}
		user := ""
		if update.Message.From != nil {
			user = update.Message.From.UserName
		}
		b.handleCommand(update.Message.Chat.ID, user, update.Message.Command())
	}
}

// handleCommand answers chats outside the configured list with a refusal only;
// alerts carry transaction ids and must not reach them
func (b *TgBot) handleCommand(chatID int64, user, command string) {
	if !b.allowed(chatID) {
		log.Printf("bot: rejected /%s from chat %d user %s", command, chatID, user)
		b.reply(chatID, "This chat is not allowed to receive gateway alerts")
		return
	}
	switch command {
	case "start":
		b.setMuted(chatID, false)
		b.reply(chatID, fmt.Sprintf("Hello *%v*, this chat receives gateway alerts", sanitize(user)))
	case "stop":
		b.setMuted(chatID, true)
		b.reply(chatID, "Gateway alerts are muted for this chat")
	case "status":
		b.reply(chatID, b.composeStatusMessage())
	}
}

func (b *TgBot) reply(chatID int64, text string) {
	select {
	case b.send <- MessageContent{ChatID: chatID, Text: text}:
	default:
		log.Printf("bot: send queue is full, reply to chat %d dropped", chatID)
	}
}

func (b *TgBot) allowed(chatID int64) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.chatIDs[chatID]
}

func (b *TgBot) setMuted(chatID int64, muted bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if muted {
		b.muted[chatID] = true
	} else {
		delete(b.muted, chatID)
	}
}

func (b *TgBot) sendPump() {
	for event := range b.send {
		b.sendMessage(event.ChatID, event.Text)
	}
}

// sendMessage falls back to plain text when markdown parsing fails
func (b *TgBot) sendMessage(id int64, text string) {
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "MarkdownV2"
	_, err := b.api.Send(msg)
	if err != nil {
		msg = tgbotapi.NewMessage(id, fmt.Sprintf("Error: %v", err))
		_, err = b.api.Send(msg)
		if err != nil {
			log.Printf("bot: error sending message: %v", err)
		}
	}
}

func (b *TgBot) composeStatusMessage() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	msg := "Status info:\n\n"
	msg += fmt.Sprintf("Configured chats: %v\n", len(b.chatIDs))
	msg += fmt.Sprintf("Muted chats: %v", len(b.muted))
	return msg
}

func composeAlert(message internal.Message) (string, error) {
	logMessage, ok := message.(*internal.FeatureLogMessage)
	if !ok {
		return "", fmt.Errorf("bot: unsupported message type %s", message.MessageType())
	}
	msg := fmt.Sprintf("*%v* `%v`\n", sanitize(logMessage.Feature), sanitize(logMessage.Time))
	if logMessage.Id != "" && logMessage.Id != "*" {
		msg += fmt.Sprintf("ID: `%v`\n", sanitize(logMessage.Id))
	}
	msg += sanitize(logMessage.Text)
	return msg, nil
}

func sanitize(input string) string {
	reservedChars := "\\`*_{}[]()#+-.!|=>~"

	var sanitized strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized.WriteRune('\\')
		}
		sanitized.WriteRune(char)
	}
	return sanitized.String()
}
