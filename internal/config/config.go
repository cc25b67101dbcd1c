package config

import (
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/nerdneilsfield/telegram-style-bot/internal/logger"
	"github.com/nerdneilsfield/telegram-style-bot/internal/style"
	"github.com/spf13/viper"
)

const (
	DefaultTelegramAPIURL = "https://api.telegram.org/bot%s/%s"
	DefaultListenAddr     = ":3000"
	DefaultLanguage       = "en"
)

type Config struct {
	BotToken        string         `toml:"botToken"`
	TelegramAPIURL  string         `toml:"telegramAPIURL"`
	DefaultLanguage string         `toml:"defaultLanguage"`
	DBPath          string         `toml:"dbPath"`
	LogConfig       LogConfig      `toml:"logConfig"`
	Webhook         WebhookConfig  `toml:"webhook"`
	ImageAPI        ImageAPIConfig `toml:"imageAPI"`
	Retry           RetryConfig    `toml:"retry"`
	Session         SessionConfig  `toml:"session"`
	Throttle        ThrottleConfig `toml:"throttle"`
	Admins          AdminConfig    `toml:"admins"`
	Styles          []StyleConfig  `toml:"styles"`
	RandomPrompts   []string       `toml:"randomPrompts"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// WebhookConfig 为空 URL 时使用 long polling
type WebhookConfig struct {
	URL        string `toml:"url"`
	ListenAddr string `toml:"listenAddr"`
}

// ImageAPIConfig: width/height 0 means 512, a negative value leaves the
// parameter out of the request.
type ImageAPIConfig struct {
	BaseURL        string `toml:"baseURL"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
	UserAgent      string `toml:"userAgent"`
}

type RetryConfig struct {
	MaxAttempts int `toml:"maxAttempts"`
	BaseDelayMs int `toml:"baseDelayMs"`
}

type SessionConfig struct {
	// 0 = 永不过期
	TTLMinutes int `toml:"ttlMinutes"`
}

type ThrottleConfig struct {
	GenerationsPerMinute int `toml:"generationsPerMinute"`
	Burst                int `toml:"burst"`
}

type AdminConfig struct {
	AdminUserIDs []int64 `toml:"adminUserIDs"`
}

type StyleConfig struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	PreviewURL   string `toml:"previewURL"`
	PromptPrefix string `toml:"promptPrefix"`
}

var defaultRandomPrompts = []string{
	"a lighthouse on a cliff during a thunderstorm",
	"a cat astronaut floating above the moon",
	"a cozy cabin in a snowy forest at night",
	"a futuristic city with flying trains at sunset",
	"a red bicycle leaning against a flower wall",
	"an ancient library inside a giant tree",
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides file values with BOT_TOKEN, WEBHOOK_URL and PORT when set.
func ApplyEnv(cfg *Config) {
	v := viper.New()
	v.SetDefault("bot_token", cfg.BotToken)
	v.SetDefault("webhook_url", cfg.Webhook.URL)
	v.SetDefault("port", "")
	_ = v.BindEnv("bot_token", "BOT_TOKEN")
	_ = v.BindEnv("webhook_url", "WEBHOOK_URL")
	_ = v.BindEnv("port", "PORT")

	cfg.BotToken = v.GetString("bot_token")
	cfg.Webhook.URL = v.GetString("webhook_url")
	if port := strings.TrimSpace(v.GetString("port")); port != "" {
		cfg.Webhook.ListenAddr = ":" + strings.TrimPrefix(port, ":")
	}
}

func ApplyDefaults(cfg *Config) {
	if cfg.TelegramAPIURL == "" {
		cfg.TelegramAPIURL = DefaultTelegramAPIURL
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = DefaultLanguage
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Format == "" {
		cfg.LogConfig.Format = "console"
	}
	if cfg.Webhook.ListenAddr == "" {
		cfg.Webhook.ListenAddr = DefaultListenAddr
	}
	if cfg.ImageAPI.BaseURL == "" {
		cfg.ImageAPI.BaseURL = "https://image.pollinations.ai/prompt/"
	}
	if cfg.ImageAPI.Width == 0 {
		cfg.ImageAPI.Width = 512
	}
	if cfg.ImageAPI.Height == 0 {
		cfg.ImageAPI.Height = 512
	}
	if cfg.ImageAPI.TimeoutSeconds == 0 {
		cfg.ImageAPI.TimeoutSeconds = 30
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMs == 0 {
		cfg.Retry.BaseDelayMs = 1000
	}
	if cfg.Throttle.GenerationsPerMinute > 0 && cfg.Throttle.Burst == 0 {
		cfg.Throttle.Burst = 1
	}
	if len(cfg.RandomPrompts) == 0 {
		cfg.RandomPrompts = append([]string(nil), defaultRandomPrompts...)
	}
}

func ValidateURL(urlString string) bool {
	if urlString == "" {
		return false
	}
	u, err := url.Parse(urlString)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// MaskedPrint only shows the last 4 characters.
func MaskedPrint(str string) string {
	if len(str) <= 4 {
		return strings.Repeat("*", len(str))
	}
	return strings.Repeat("*", len(str)-4) + str[len(str)-4:]
}

func PrintConfig(w io.Writer, cfg *Config) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintln(w, "Config:")
	fmt.Fprintf(w, "\tBotToken: %s\n", MaskedPrint(cfg.BotToken))
	fmt.Fprintf(w, "\tTelegramAPIURL: %s\n", strings.ReplaceAll(cfg.TelegramAPIURL, cfg.BotToken, MaskedPrint(cfg.BotToken)))
	fmt.Fprintf(w, "\tDefaultLanguage: %s\n", cfg.DefaultLanguage)
	fmt.Fprintf(w, "\tDBPath: %s\n", cfg.DBPath)
	fmt.Fprintf(w, "\tLogConfig: %v\n", cfg.LogConfig)
	fmt.Fprintf(w, "\tWebhook: %v\n", cfg.Webhook)
	fmt.Fprintf(w, "\tImageAPI: %v\n", cfg.ImageAPI)
	fmt.Fprintf(w, "\tRetry: %v\n", cfg.Retry)
	fmt.Fprintf(w, "\tSession: %v\n", cfg.Session)
	fmt.Fprintf(w, "\tThrottle: %v\n", cfg.Throttle)
	fmt.Fprintf(w, "\tAdmins: %v\n", cfg.Admins)
	fmt.Fprintf(w, "\tStyles: %d\n", len(cfg.Styles))
	fmt.Fprintf(w, "\tRandomPrompts: %d\n", len(cfg.RandomPrompts))
	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintln(w)
}

func ValidateConfig(cfg *Config) error {
	if cfg.BotToken == "" {
		return fmt.Errorf("botToken is required (or set BOT_TOKEN)")
	}
	if cfg.TelegramAPIURL == "" || !ValidateURL(strings.ReplaceAll(cfg.TelegramAPIURL, "%s", cfg.BotToken)) {
		return fmt.Errorf("telegramAPIURL is required and must be a valid URL")
	}
	if cfg.Webhook.URL != "" && !ValidateURL(cfg.Webhook.URL) {
		return fmt.Errorf("webhook.url must be a valid URL")
	}
	if cfg.Webhook.URL != "" && cfg.Webhook.ListenAddr == "" {
		return fmt.Errorf("webhook.listenAddr is required in webhook mode")
	}
	if !ValidateURL(cfg.ImageAPI.BaseURL) {
		return fmt.Errorf("imageAPI.baseURL must be a valid URL")
	}
	if cfg.ImageAPI.TimeoutSeconds <= 0 {
		return fmt.Errorf("imageAPI.timeoutSeconds must be greater than 0")
	}
	if cfg.Retry.MaxAttempts <= 0 || cfg.Retry.MaxAttempts > 10 {
		return fmt.Errorf("retry.maxAttempts must be between 1 and 10")
	}
	if cfg.Retry.BaseDelayMs < 0 {
		return fmt.Errorf("retry.baseDelayMs must not be negative")
	}
	if cfg.Session.TTLMinutes < 0 {
		return fmt.Errorf("session.ttlMinutes must not be negative")
	}
	if cfg.Throttle.GenerationsPerMinute < 0 || cfg.Throttle.Burst < 0 {
		return fmt.Errorf("throttle values must not be negative")
	}
	if !slices.Contains(logger.LevelNames(), strings.ToLower(cfg.LogConfig.Level)) && !strings.EqualFold(cfg.LogConfig.Level, "warning") {
		return fmt.Errorf("logConfig.level must be one of %s", strings.Join(logger.LevelNames(), ", "))
	}
	if cfg.LogConfig.Format == "" {
		return fmt.Errorf("logFormat is required")
	}
	if len(cfg.Styles) > 0 {
		if _, err := style.New(cfg.StyleList()); err != nil {
			return fmt.Errorf("invalid styles: %w", err)
		}
	}
	return nil
}

// StyleList converts [[styles]] into catalog entries; empty means the default catalog.
func (c *Config) StyleList() []style.Style {
	if len(c.Styles) == 0 {
		return nil
	}
	out := make([]style.Style, 0, len(c.Styles))
	for _, s := range c.Styles {
		out = append(out, style.Style{
			ID:           s.ID,
			Name:         s.Name,
			PreviewURL:   s.PreviewURL,
			PromptPrefix: s.PromptPrefix,
		})
	}
	return out
}

// Catalog builds the style catalog from the config, falling back to the built-in styles.
func (c *Config) Catalog() (*style.Catalog, error) {
	if len(c.Styles) == 0 {
		return style.Default(), nil
	}
	return style.New(c.StyleList())
}

// ImageSize returns the width and height sent to the image API; 0 omits the parameter.
func (c *Config) ImageSize() (width, height int) {
	return max(c.ImageAPI.Width, 0), max(c.ImageAPI.Height, 0)
}

func (c *Config) ImageTimeout() time.Duration {
	return time.Duration(c.ImageAPI.TimeoutSeconds) * time.Second
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}
