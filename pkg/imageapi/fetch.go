package imageapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Image is the raw payload returned by the service.
type Image struct {
	Data        []byte
	ContentType string
}

// BuildURL returns {baseURL}/{escaped prompt} with the optional size query.
// Sizes <= 0 are left out.
func (c *Client) BuildURL(prompt string) string {
	u := strings.TrimSuffix(c.baseURL, "/") + "/" + url.PathEscape(prompt)

	q := url.Values{}
	if c.width > 0 {
		q.Set("width", strconv.Itoa(c.width))
	}
	if c.height > 0 {
		q.Set("height", strconv.Itoa(c.height))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Fetch performs a single GET for prompt bounded by the client timeout.
// Failures are classified as ErrTimeout, *StatusError, ErrNetwork or
// ErrMalformedResponse. Cancellation of ctx itself is returned as ctx.Err().
func (c *Client) Fetch(ctx context.Context, prompt string) (*Image, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestURL := c.BuildURL(prompt)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, attemptCtx, "send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Image API returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(snippet)))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, c.classify(ctx, attemptCtx, "read", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedResponse, maxImageBytes)
	}

	contentType := imageContentType(resp.Header.Get("Content-Type"), body)
	if contentType == "" {
		return nil, fmt.Errorf("%w: content type %q is not an image", ErrMalformedResponse, resp.Header.Get("Content-Type"))
	}

	c.logger.Debug("Image fetched",
		zap.Int("bytes", len(body)),
		zap.String("content_type", contentType),
		zap.Duration("elapsed", time.Since(start)))
	return &Image{Data: body, ContentType: contentType}, nil
}

func (c *Client) classify(parent, attemptCtx context.Context, stage string, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s (%s)", ErrTimeout, c.timeout, stage)
	}
	return fmt.Errorf("%w: %s: %v", ErrNetwork, stage, err)
}

// imageContentType returns the image media type of the payload, sniffing the
// bytes when the header is missing or generic. Empty means "not an image".
func imageContentType(header string, body []byte) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	if header == "" || err != nil || mediaType == "application/octet-stream" || mediaType == "binary/octet-stream" {
		sniffed := http.DetectContentType(body)
		if strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	return ""
}
