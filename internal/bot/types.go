package bot

import (
	"context"
	"encoding/hex"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nerdneilsfield/telegram-style-bot/internal/auth"
	cfg "github.com/nerdneilsfield/telegram-style-bot/internal/config"
	"github.com/nerdneilsfield/telegram-style-bot/internal/i18n"
	"github.com/nerdneilsfield/telegram-style-bot/internal/session"
	st "github.com/nerdneilsfield/telegram-style-bot/internal/storage"
	"github.com/nerdneilsfield/telegram-style-bot/internal/style"
	"github.com/nerdneilsfield/telegram-style-bot/internal/throttle"
	"github.com/nerdneilsfield/telegram-style-bot/pkg/imageapi"
	"go.uber.org/zap"

	"golang.org/x/crypto/blake2b"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ImageFetcher performs one generation request. *imageapi.Client implements it.
type ImageFetcher interface {
	Fetch(ctx context.Context, prompt string) (*imageapi.Image, error)
}

var (
	_ Sender       = (*tgbotapi.BotAPI)(nil)
	_ ImageFetcher = (*imageapi.Client)(nil)
)

// BotDeps 包含 Bot 需要的所有依赖
type BotDeps struct {
	Bot         Sender
	Config      *cfg.Config
	Catalog     *style.Catalog
	Sessions    session.Store
	Pipeline    *Pipeline
	Throttle    *throttle.Limiter   // Optional
	History     *st.HistoryStore    // Optional
	Preferences *st.PreferenceStore // Optional
	Authorizer  *auth.Authorizer
	I18n        *i18n.Manager
	Languages   *LanguageCache
	Logger      *zap.Logger
	Version     string
	BuildDate   string
}

// LanguageCache remembers language choices so that every update does not hit the database.
type LanguageCache struct {
	mu    sync.RWMutex
	langs map[int64]string
}

func NewLanguageCache() *LanguageCache {
	return &LanguageCache{langs: make(map[int64]string)}
}

func (c *LanguageCache) Get(userID int64) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	lang, ok := c.langs[userID]
	return lang, ok
}

func (c *LanguageCache) Set(userID int64, lang string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.langs[userID] = lang
}

// WebhookPath derives the webhook route from the bot token so the raw token
// never appears in URLs or access logs.
func WebhookPath(token string) string {
	// BLAKE2b-256 输出 32 字节, 编码为 64 个十六进制字符
	sum := blake2b.Sum256([]byte(token))
	return "/bot" + hex.EncodeToString(sum[:])
}
