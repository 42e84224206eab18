package bot

import (
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"surveybot/internal/config"
	"surveybot/internal/export"
	"surveybot/internal/storage/stubs"
)

// fakeAPI records everything the bot sends. failSendOn holds 1-based Send
// call numbers that should return an error.
type fakeAPI struct {
	mu         sync.Mutex
	sent       []tgbotapi.Chattable
	requests   []tgbotapi.Chattable
	sendCount  int
	failSendOn map[int]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{failSendOn: make(map[int]bool)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCount++
	if f.failSendOn[f.sendCount] {
		return tgbotapi.Message{}, fmt.Errorf("send %d failed", f.sendCount)
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.sendCount, Chat: &tgbotapi.Chat{}}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

// messagesTo returns the texts of plain messages sent to chatID, in order.
func (f *fakeAPI) messagesTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok && msg.ChatID == chatID {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastMessage() (tgbotapi.MessageConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if msg, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return msg, true
		}
	}
	return tgbotapi.MessageConfig{}, false
}

func (f *fakeAPI) countRequests(match func(tgbotapi.Chattable) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if match(r) {
			n++
		}
	}
	return n
}

const (
	testAdminID = int64(1)
	testUserID  = int64(42)
)

func testConfig() *config.Config {
	return &config.Config{
		TelegramToken:  "test-token",
		AdminIDs:       map[int64]bool{testAdminID: true},
		CaptchaEnabled: true,
		CaptchaTimeout: time.Hour,
		WelcomeMessage: "Welcome, {username}!",
		DatabasePath:   ":memory:",
		ExportDir:      "data",
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *stubs.MockDB) {
	t.Helper()
	return newTestBotWithCaptchaTimeout(t, time.Hour)
}

// newTestBotWithCaptchaTimeout builds a bot whose captcha timer fires after
// the given duration. Tests exercising expiry pass something short.
func newTestBotWithCaptchaTimeout(t *testing.T, timeout time.Duration) (*Bot, *fakeAPI, *stubs.MockDB) {
	t.Helper()
	api := newFakeAPI()
	db := stubs.NewMockDB()
	if err := db.Initialize(t.Context()); err != nil {
		t.Fatalf("initialize mock db: %v", err)
	}
	sink, err := export.NewSink(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	cfg := testConfig()
	cfg.CaptchaTimeout = timeout
	b := newBot(api, "surveybot_test_bot", cfg, db, sink, zap.NewNop())
	return b, api, db
}

func makeMessage(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}
}

func makeCommand(userID, chatID int64, text string) *tgbotapi.Message {
	msg := makeMessage(userID, chatID, text)
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	return msg
}

func makeCallback(userID, chatID int64, messageID int, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		},
		Data: data,
	}
}
