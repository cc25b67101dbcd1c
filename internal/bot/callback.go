package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nerdneilsfield/telegram-style-bot/internal/session"
	"go.uber.org/zap"
)

// HandleCallbackQuery routes carousel buttons. The query is always answered so
// the client stops its spinner; stale taps are answered with no text.
func HandleCallbackQuery(ctx context.Context, callbackQuery *tgbotapi.CallbackQuery, deps BotDeps) {
	answerText := ""
	defer func() { answerCallback(callbackQuery.ID, answerText, deps) }()

	if callbackQuery.From == nil || callbackQuery.Message == nil {
		// inline-mode messages carry no chat; the bot never creates them
		return
	}
	userID := callbackQuery.From.ID
	message := callbackQuery.Message
	action := ParseAction(callbackQuery.Data)
	log := deps.Logger.With(zap.Int64("user_id", userID), zap.String("action", action.Kind.String()))

	// 只处理自己的轮播消息; 群组里别人的按钮视为过期
	if action.Kind != ActionUnknown {
		sess, ok := deps.Sessions.Get(userID)
		if !ok || !sess.ShowsCarousel(message.Chat.ID, message.MessageID) {
			log.Debug("Ignoring tap on a message that is not the user's carousel",
				zap.Int64("chat_id", message.Chat.ID),
				zap.Int("message_id", message.MessageID))
			return
		}
	}

	switch action.Kind {
	case ActionPrev, ActionNext:
		dir := session.Next
		if action.Kind == ActionPrev {
			dir = session.Prev
		}
		sess, ok := deps.Sessions.Advance(userID, dir)
		if !ok {
			if sess.State == session.StateGenerating {
				answerText = deps.I18n.T(userLanguage(ctx, callbackQuery.From, deps), "busy_generating")
			} else {
				log.Debug("Ignoring navigation without session")
			}
			return
		}
		lang := userLanguage(ctx, callbackQuery.From, deps)
		shown, err := EditCarousel(message, BuildCarousel(sess, deps.Catalog, lang, deps.I18n), deps)
		if err != nil {
			log.Error("Failed to render carousel", zap.Error(err))
			return
		}
		deps.Sessions.AttachCarousel(userID, message.Chat.ID, shown.MessageID)

	case ActionGenerate:
		if _, ok := deps.Catalog.Get(action.StyleID); !ok {
			log.Debug("Ignoring generate for unknown style", zap.String("style_id", action.StyleID))
			return
		}
		sess, ok := deps.Sessions.Get(userID)
		if !ok {
			log.Debug("Ignoring generate without session")
			return
		}
		lang := userLanguage(ctx, callbackQuery.From, deps)
		if sess.State == session.StateGenerating {
			answerText = deps.I18n.T(lang, "busy_generating")
			return
		}
		if !deps.Throttle.Allow(userID) {
			log.Info("Generation throttled")
			answerText = deps.I18n.T(lang, "throttled")
			return
		}
		switch deps.Pipeline.Start(ctx, GenerationRequest{
			UserID:  userID,
			ChatID:  message.Chat.ID,
			StyleID: action.StyleID,
			Lang:    lang,
		}) {
		case StartBusy:
			answerText = deps.I18n.T(lang, "busy_generating")
		case StartStale:
			log.Debug("Generate request became stale")
		}

	default:
		log.Debug("Ignoring unknown callback data", zap.String("data", callbackQuery.Data))
	}
}
