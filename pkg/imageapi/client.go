package imageapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "https://image.pollinations.ai/prompt/"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "telegram-style-bot"

	// maxImageBytes caps the body read; Telegram rejects photos above 10 MB anyway.
	maxImageBytes = 20 << 20
)

// Options configures a Client. Zero fields fall back to defaults.
type Options struct {
	BaseURL   string
	Width     int
	Height    int
	Timeout   time.Duration
	UserAgent string
}

type Client struct {
	baseURL    string
	width      int
	height     int
	timeout    time.Duration
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a client. A nil httpClient uses one without a global timeout,
// since each attempt gets its own deadline.
func NewClient(opts Options, httpClient *http.Client, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    opts.BaseURL,
		width:      opts.Width,
		height:     opts.Height,
		timeout:    opts.Timeout,
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		logger:     logger,
	}
}
