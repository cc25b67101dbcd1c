package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
botToken = "123456:ABCDEF-secret"
dbPath = "data/bot.db"
defaultLanguage = "zh"

[logConfig]
level = "debug"
format = "json"

[webhook]
url = "https://bot.example.com"

[imageAPI]
width = 768
timeoutSeconds = 15

[retry]
maxAttempts = 4
baseDelayMs = 250

[session]
ttlMinutes = 90

[admins]
adminUserIDs = [1001]

[[styles]]
id = "none"
name = "Plain"

[[styles]]
id = "pixel"
name = "Pixel"
previewURL = "https://img.example/pixel.png"
promptPrefix = "pixel art, "
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAndDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	ApplyDefaults(cfg)

	if cfg.BotToken != "123456:ABCDEF-secret" || cfg.DefaultLanguage != "zh" {
		t.Errorf("unexpected top-level values: %+v", cfg)
	}
	if cfg.ImageAPI.Width != 768 || cfg.ImageAPI.Height != 512 {
		t.Errorf("image size = %dx%d, want 768x512", cfg.ImageAPI.Width, cfg.ImageAPI.Height)
	}
	if cfg.ImageTimeout() != 15*time.Second {
		t.Errorf("ImageTimeout = %v", cfg.ImageTimeout())
	}
	if cfg.Retry.MaxAttempts != 4 || cfg.RetryBaseDelay() != 250*time.Millisecond {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.SessionTTL() != 90*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL())
	}
	if cfg.Webhook.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q", cfg.Webhook.ListenAddr)
	}
	if cfg.TelegramAPIURL != DefaultTelegramAPIURL {
		t.Errorf("TelegramAPIURL = %q", cfg.TelegramAPIURL)
	}
	if len(cfg.RandomPrompts) == 0 {
		t.Error("random prompts should default to the built-in list")
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if catalog.Len() != 2 || catalog.At(1).ID != "pixel" {
		t.Errorf("catalog = %+v", catalog.All())
	}
}

func TestNegativeImageSizeIsOmitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "botToken = \"1:abc\"\n[imageAPI]\nwidth = -1\nheight = 0\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	ApplyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("negative size should validate: %v", err)
	}
	if w, h := cfg.ImageSize(); w != 0 || h != 512 {
		t.Errorf("ImageSize = %d x %d, want 0 x 512", w, h)
	}
}

func TestCatalogFallsBackToDefaults(t *testing.T) {
	cfg := &Config{}
	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if catalog.Len() != 4 || catalog.At(0).ID != "none" {
		t.Errorf("default catalog = %+v", catalog.All())
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token-9999")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.org")
	t.Setenv("PORT", "8443")

	cfg := &Config{BotToken: "file-token", Webhook: WebhookConfig{ListenAddr: ":9000"}}
	ApplyEnv(cfg)

	if cfg.BotToken != "env-token-9999" {
		t.Errorf("BotToken = %q", cfg.BotToken)
	}
	if cfg.Webhook.URL != "https://hooks.example.org" {
		t.Errorf("Webhook.URL = %q", cfg.Webhook.URL)
	}
	if cfg.Webhook.ListenAddr != ":8443" {
		t.Errorf("ListenAddr = %q", cfg.Webhook.ListenAddr)
	}
}

func TestApplyEnvKeepsFileValuesWhenUnset(t *testing.T) {
	// empty values count as unset
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("WEBHOOK_URL", "")
	t.Setenv("PORT", "")

	cfg := &Config{BotToken: "file-token", Webhook: WebhookConfig{ListenAddr: ":9000"}}
	ApplyEnv(cfg)
	if cfg.BotToken != "file-token" || cfg.Webhook.ListenAddr != ":9000" || cfg.Webhook.URL != "" {
		t.Errorf("file values overwritten: %+v", cfg)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{BotToken: "123:abc"}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.BotToken = "" }, "botToken"},
		{"bad webhook", func(c *Config) { c.Webhook.URL = "not a url" }, "webhook.url"},
		{"bad image base", func(c *Config) { c.ImageAPI.BaseURL = "/relative" }, "imageAPI.baseURL"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.maxAttempts"},
		{"unknown log level", func(c *Config) { c.LogConfig.Level = "verbose" }, "logConfig.level"},
		{"negative ttl", func(c *Config) { c.Session.TTLMinutes = -1 }, "session.ttlMinutes"},
		{"styles without none", func(c *Config) {
			c.Styles = []StyleConfig{{ID: "anime", Name: "Anime", PromptPrefix: "anime, "}}
		}, "invalid styles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}

	if err := ValidateConfig(valid()); err != nil {
		t.Errorf("minimal config should validate: %v", err)
	}
}

func TestMaskedPrint(t *testing.T) {
	if got := MaskedPrint("abcdefgh"); got != "****efgh" {
		t.Errorf("MaskedPrint = %q", got)
	}
	if got := MaskedPrint("abc"); got != "***" {
		t.Errorf("short MaskedPrint = %q", got)
	}
	if got := MaskedPrint(""); got != "" {
		t.Errorf("empty MaskedPrint = %q", got)
	}
}

func TestPrintConfigMasksToken(t *testing.T) {
	cfg := &Config{BotToken: "123456:SECRETVALUE"}
	ApplyDefaults(cfg)
	var buf bytes.Buffer
	PrintConfig(&buf, cfg)
	if strings.Contains(buf.String(), "SECRETVALUE") {
		t.Errorf("token leaked in printed config:\n%s", buf.String())
	}
}
