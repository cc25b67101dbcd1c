package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nerdneilsfield/telegram-style-bot/internal/auth"
	"github.com/nerdneilsfield/telegram-style-bot/internal/config"
	"github.com/nerdneilsfield/telegram-style-bot/internal/i18n"
	"github.com/nerdneilsfield/telegram-style-bot/internal/retry"
	"github.com/nerdneilsfield/telegram-style-bot/internal/session"
	"github.com/nerdneilsfield/telegram-style-bot/internal/style"
	"github.com/nerdneilsfield/telegram-style-bot/pkg/imageapi"
	"go.uber.org/zap"
)

var errTelegram = errors.New("Bad Request: wrong file identifier/HTTP URL specified")

// fakeSender records everything the bot sends to Telegram.
type fakeSender struct {
	mu       sync.Mutex
	nextID   int
	sent     []tgbotapi.Chattable
	ids      []int
	requests []tgbotapi.Chattable

	failPhotoURL bool
	failEdits    bool
	failDeletes  bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch v := c.(type) {
	case tgbotapi.PhotoConfig:
		if _, isURL := v.File.(tgbotapi.FileURL); isURL && f.failPhotoURL {
			return tgbotapi.Message{}, errTelegram
		}
	case tgbotapi.EditMessageMediaConfig, tgbotapi.EditMessageTextConfig:
		if f.failEdits {
			return tgbotapi.Message{}, errTelegram
		}
	}

	f.nextID++
	f.sent = append(f.sent, c)
	f.ids = append(f.ids, f.nextID)
	return tgbotapi.Message{MessageID: f.nextID, Chat: &tgbotapi.Chat{ID: chatIDOf(c)}}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if _, ok := c.(tgbotapi.DeleteMessageConfig); ok && f.failDeletes {
		return nil, errTelegram
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func chatIDOf(c tgbotapi.Chattable) int64 {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		return v.ChatID
	case tgbotapi.PhotoConfig:
		return v.ChatID
	default:
		return 0
	}
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// textMessageID returns the id assigned to the last text message equal to text.
func (f *fakeSender) textMessageID(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := 0
	for i, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.Text == text {
			id = f.ids[i]
		}
	}
	return id
}

func (f *fakeSender) texts() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

// generatedPhotos returns photos sent from bytes, i.e. generation results.
func (f *fakeSender) generatedPhotos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			if _, isBytes := p.File.(tgbotapi.FileBytes); isBytes {
				out = append(out, p)
			}
		}
	}
	return out
}

func (f *fakeSender) previewPhotos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			if _, isURL := p.File.(tgbotapi.FileURL); isURL {
				out = append(out, p)
			}
		}
	}
	return out
}

func (f *fakeSender) mediaEdits() []tgbotapi.EditMessageMediaConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageMediaConfig
	for _, c := range f.sent {
		if e, ok := c.(tgbotapi.EditMessageMediaConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) deletedIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, c := range f.requests {
		if d, ok := c.(tgbotapi.DeleteMessageConfig); ok {
			out = append(out, d.MessageID)
		}
	}
	return out
}

func (f *fakeSender) callbackAnswers() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

// fakeFetcher returns errs[i] for call i, then succeeds. Call i blocks on
// gates[i] when set; started receives the index of every call.
type fakeFetcher struct {
	mu      sync.Mutex
	prompts []string
	errs    []error
	always  error
	gates   []chan struct{}
	started chan int
}

func (f *fakeFetcher) Fetch(ctx context.Context, prompt string) (*imageapi.Image, error) {
	f.mu.Lock()
	call := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	err := f.always
	if err == nil && call < len(f.errs) {
		err = f.errs[call]
	}
	var gate chan struct{}
	if call < len(f.gates) {
		gate = f.gates[call]
	}
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- call
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &imageapi.Image{Data: []byte("\x89PNG fake"), ContentType: "image/png"}, nil
}

func (f *fakeFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type testEnv struct {
	deps    BotDeps
	sender  *fakeSender
	fetcher *fakeFetcher
	sleeps  *[]time.Duration
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tr, err := i18n.NewManager("en", nil)
	if err != nil {
		t.Fatalf("i18n: %v", err)
	}
	sender := &fakeSender{}
	fetcher := &fakeFetcher{}
	catalog := style.Default()
	sessions := session.NewMemoryStore(catalog.Len(), 0)

	var mu sync.Mutex
	sleeps := []time.Duration{}
	policy := retry.Policy{
		MaxAttempts: 3,
		Backoff:     retry.Exponential(time.Second),
		Retryable:   imageapi.IsRetryable,
		Sleep: func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			sleeps = append(sleeps, d)
			mu.Unlock()
			return ctx.Err()
		},
	}

	deps := BotDeps{
		Bot:        sender,
		Config:     &config.Config{RandomPrompts: []string{"a lighthouse in a storm"}},
		Catalog:    catalog,
		Sessions:   sessions,
		Authorizer: auth.NewAuthorizer([]int64{9000}),
		I18n:       tr,
		Languages:  NewLanguageCache(),
		Logger:     zap.NewNop(),
		Version:    "v-test",
		BuildDate:  "today",
	}
	deps.Pipeline = NewPipeline(PipelineOptions{
		Bot:      sender,
		Fetcher:  fetcher,
		Policy:   policy,
		Sessions: sessions,
		Catalog:  catalog,
		I18n:     tr,
	})
	return &testEnv{deps: deps, sender: sender, fetcher: fetcher, sleeps: &sleeps}
}

func privateChat(id int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: id, Type: "private"}
}

func textUpdate(userID int64, chat *tgbotapi.Chat, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, LanguageCode: "en"},
		Chat:      chat,
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(userID int64, message *tgbotapi.Message, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: userID, LanguageCode: "en"},
			Message: message,
			Data:    data,
		},
	}
}

func photoMessage(chatID int64, id int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: id,
		Chat:      privateChat(chatID),
		Photo:     []tgbotapi.PhotoSize{{FileID: "preview"}},
	}
}
