package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nerdneilsfield/telegram-style-bot/internal/i18n"
	"github.com/nerdneilsfield/telegram-style-bot/internal/retry"
	"github.com/nerdneilsfield/telegram-style-bot/internal/session"
	st "github.com/nerdneilsfield/telegram-style-bot/internal/storage"
	"github.com/nerdneilsfield/telegram-style-bot/internal/style"
	"github.com/nerdneilsfield/telegram-style-bot/pkg/imageapi"
	"go.uber.org/zap"
)

// GenerationRequest identifies one generate tap.
type GenerationRequest struct {
	UserID  int64
	ChatID  int64
	StyleID string
	Lang    string
}

// StartResult tells the caller what happened to a generate tap.
type StartResult int

const (
	// StartStale: no session, no prompt or unknown style. Nothing was sent.
	StartStale StartResult = iota
	// StartBusy: the user already has a generation running.
	StartBusy
	// StartAccepted: the generation is running in the background.
	StartAccepted
)

// Outcome summarizes a finished generation.
type Outcome struct {
	Delivered bool
	Attempts  int
	Err       error
}

// Pipeline turns (session prompt, style) into a delivered photo or one failure message.
type Pipeline struct {
	bot      Sender
	fetcher  ImageFetcher
	policy   retry.Policy
	sessions session.Store
	catalog  *style.Catalog
	history  *st.HistoryStore
	i18n     *i18n.Manager
	logger   *zap.Logger

	wg sync.WaitGroup
}

type PipelineOptions struct {
	Bot      Sender
	Fetcher  ImageFetcher
	Policy   retry.Policy
	Sessions session.Store
	Catalog  *style.Catalog
	History  *st.HistoryStore // Optional
	I18n     *i18n.Manager
	Logger   *zap.Logger
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		bot:      opts.Bot,
		fetcher:  opts.Fetcher,
		policy:   opts.Policy,
		sessions: opts.Sessions,
		catalog:  opts.Catalog,
		history:  opts.History,
		i18n:     opts.I18n,
		logger:   logger.Named("pipeline"),
	}
	if p.policy.Retryable == nil {
		p.policy.Retryable = imageapi.IsRetryable
	}
	return p
}

// Start validates the request and moves the session to Generating, then runs
// the fetch in the background. The session transition happens before Start
// returns, so the next update of the same user already sees it.
func (p *Pipeline) Start(ctx context.Context, req GenerationRequest) StartResult {
	s, sess, result := p.begin(req)
	if result != StartAccepted {
		return result
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, req, s, sess)
	}()
	return StartAccepted
}

// Generate is the synchronous form of Start.
func (p *Pipeline) Generate(ctx context.Context, req GenerationRequest) (Outcome, StartResult) {
	s, sess, result := p.begin(req)
	if result != StartAccepted {
		return Outcome{}, result
	}
	return p.run(ctx, req, s, sess), StartAccepted
}

// Wait blocks until all background generations have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) begin(req GenerationRequest) (style.Style, session.Session, StartResult) {
	log := p.logger.With(zap.Int64("user_id", req.UserID), zap.String("style_id", req.StyleID))

	s, ok := p.catalog.Get(req.StyleID)
	if !ok {
		log.Debug("Ignoring generate for unknown style")
		return style.Style{}, session.Session{}, StartStale
	}
	sess, err := p.sessions.BeginGeneration(req.UserID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		log.Debug("Ignoring generate without session")
		return s, sess, StartStale
	case errors.Is(err, session.ErrInvalidTransition) && sess.State == session.StateGenerating:
		log.Debug("Generation already running")
		return s, sess, StartBusy
	case err != nil:
		log.Debug("Ignoring generate", zap.String("state", sess.State.String()), zap.Error(err))
		return s, sess, StartStale
	}
	return s, sess, StartAccepted
}

func (p *Pipeline) run(ctx context.Context, req GenerationRequest, s style.Style, sess session.Session) Outcome {
	defer p.sessions.FinishGeneration(req.UserID, sess.Generation)

	log := p.logger.With(
		zap.Int64("user_id", req.UserID),
		zap.Int64("chat_id", req.ChatID),
		zap.String("style_id", s.ID))
	start := time.Now()
	fullPrompt := style.ComposePrompt(s, sess.Prompt)

	if _, err := p.bot.Request(tgbotapi.NewChatAction(req.ChatID, tgbotapi.ChatUploadPhoto)); err != nil {
		log.Debug("Failed to send chat action", zap.Error(err))
	}
	status, err := p.bot.Send(tgbotapi.NewMessage(req.ChatID, p.i18n.T(req.Lang, "generating")))
	if err != nil {
		log.Warn("Failed to send status message", zap.Error(err))
	}

	var image *imageapi.Image
	policy := p.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Info("Image fetch failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.String("class", imageapi.Class(err)),
			zap.Error(err))
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		img, err := p.fetcher.Fetch(ctx, fullPrompt)
		if err != nil {
			return err
		}
		image = img
		return nil
	})

	outcome := Outcome{Attempts: attempts, Err: err}
	if err == nil {
		err = p.deliver(req, s, sess.Prompt, image)
		outcome.Err = err
		outcome.Delivered = err == nil
	}
	if outcome.Err != nil {
		log.Error("Generation failed",
			zap.Int("attempts", attempts),
			zap.String("class", imageapi.Class(outcome.Err)),
			zap.Error(outcome.Err))
		if _, sendErr := p.bot.Send(tgbotapi.NewMessage(req.ChatID, p.i18n.T(req.Lang, "generation_failed"))); sendErr != nil {
			log.Error("Failed to send failure message", zap.Error(sendErr))
		}
	} else {
		log.Info("Image delivered", zap.Int("attempts", attempts), zap.Duration("elapsed", time.Since(start)))
	}
	deleteMessageWith(p.bot, log, req.ChatID, status.MessageID)

	p.record(req, s, sess.Prompt, outcome, time.Since(start))
	return outcome
}

func (p *Pipeline) deliver(req GenerationRequest, s style.Style, prompt string, image *imageapi.Image) error {
	photo := tgbotapi.NewPhoto(req.ChatID, tgbotapi.FileBytes{
		Name:  "image" + extensionFor(image.ContentType),
		Bytes: image.Data,
	})
	photo.Caption = p.Caption(s, prompt, req.Lang)
	if _, err := p.bot.Send(photo); err != nil {
		return err
	}
	return nil
}

// Caption is the text under a generated photo.
func (p *Pipeline) Caption(s style.Style, prompt, lang string) string {
	prompt = truncateUTF16(prompt, maxPromptInCaption)
	if s.IsNone() {
		return truncateUTF16(p.i18n.T(lang, "caption_none", "Prompt", prompt), maxCaptionUnits)
	}
	return truncateUTF16(p.i18n.T(lang, "caption_styled", "Name", s.Name, "Prompt", prompt), maxCaptionUnits)
}

func (p *Pipeline) record(req GenerationRequest, s style.Style, prompt string, outcome Outcome, elapsed time.Duration) {
	if p.history == nil {
		return
	}
	rec := &st.GenerationRecord{
		UserID:     req.UserID,
		ChatID:     req.ChatID,
		StyleID:    s.ID,
		Prompt:     prompt,
		Attempts:   outcome.Attempts,
		Success:    outcome.Delivered,
		ErrorClass: imageapi.Class(outcome.Err),
		DurationMs: elapsed.Milliseconds(),
	}
	// 使用独立的 context, 关闭时也要写完历史
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.history.Record(ctx, rec)
}

func deleteMessageWith(bot Sender, log *zap.Logger, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Warn("Failed to delete message",
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
