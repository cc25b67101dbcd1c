package bot

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nerdneilsfield/telegram-style-bot/internal/session"
	"go.uber.org/zap"
)

const historyLimit = 10

func HandleUpdate(ctx context.Context, update tgbotapi.Update, deps BotDeps) {
	defer func() {
		if r := recover(); r != nil {
			handlePanic(ctx, update, r, deps)
		}
	}()

	if update.Message != nil {
		HandleMessage(ctx, update.Message, deps)
	} else if update.CallbackQuery != nil {
		HandleCallbackQuery(ctx, update.CallbackQuery, deps)
	}
}

func handlePanic(ctx context.Context, update tgbotapi.Update, r interface{}, deps BotDeps) {
	errMsg := fmt.Sprintf("%v", r)
	stackTrace := string(debug.Stack())
	deps.Logger.Error("Panic recovered in HandleUpdate", zap.String("panic_value", errMsg), zap.String("stack", stackTrace))

	var chatID int64
	var user *tgbotapi.User
	if update.Message != nil {
		chatID = update.Message.Chat.ID
		user = update.Message.From
	} else if update.CallbackQuery != nil {
		user = update.CallbackQuery.From
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
	}

	// 通知用户和管理员, 这里自身出错也不能再 panic
	defer func() {
		if r := recover(); r != nil {
			deps.Logger.Error("Panic while reporting panic", zap.Any("panic_value", r))
		}
	}()

	var userID int64
	if user != nil {
		userID = user.ID
	}
	if chatID != 0 {
		lang := deps.I18n.DefaultLanguage()
		if user != nil {
			lang = deps.I18n.Resolve(user.LanguageCode)
		}
		deps.Bot.Send(tgbotapi.NewMessage(chatID, deps.I18n.T(lang, "panic_user")))
	}
	for _, adminID := range deps.Authorizer.Admins() {
		report := deps.I18n.T(deps.I18n.DefaultLanguage(), "panic_admin",
			"UserID", userID,
			"Error", errMsg,
			"Stack", stackTrace,
		)
		deps.Bot.Send(tgbotapi.NewMessage(adminID, truncateUTF16(report, maxMessageUnits)))
	}
}

func HandleMessage(ctx context.Context, message *tgbotapi.Message, deps BotDeps) {
	if message.From == nil {
		return
	}
	userID := message.From.ID
	chatID := message.Chat.ID
	lang := userLanguage(ctx, message.From, deps)

	if message.IsCommand() {
		handleCommand(ctx, message, lang, deps)
		return
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		// 图片、贴纸等非文本消息
		return
	}

	if isRandomButton(text, deps) {
		startPrompt(chatID, userID, randomPrompt(deps), lang, deps)
		return
	}

	// 群组中只响应 /gen
	if !message.Chat.IsPrivate() {
		return
	}
	startPrompt(chatID, userID, text, lang, deps)
}

func handleCommand(ctx context.Context, message *tgbotapi.Message, lang string, deps BotDeps) {
	userID := message.From.ID
	chatID := message.Chat.ID
	deps.Logger.Debug("Command received", zap.Int64("user_id", userID), zap.String("command", message.Command()))

	switch message.Command() {
	case "start":
		reply := tgbotapi.NewMessage(chatID, deps.I18n.T(lang, "welcome"))
		reply.ReplyMarkup = mainKeyboard(lang, deps.I18n)
		if _, err := deps.Bot.Send(reply); err != nil {
			deps.Logger.Error("Failed to send welcome", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	case "help":
		sendText(chatID, deps.I18n.T(lang, "help"), deps)
	case "styles":
		HandleStylesCommand(chatID, lang, deps)
	case "gen":
		prompt := strings.TrimSpace(message.CommandArguments())
		if prompt == "" {
			sendText(chatID, deps.I18n.T(lang, "gen_usage"), deps)
			return
		}
		startPrompt(chatID, userID, prompt, lang, deps)
	case "cancel":
		HandleCancelCommand(chatID, userID, lang, deps)
	case "history":
		HandleHistoryCommand(ctx, chatID, userID, lang, deps)
	case "language":
		HandleLanguageCommand(ctx, chatID, userID, strings.TrimSpace(message.CommandArguments()), lang, deps)
	case "version":
		sendText(chatID, deps.I18n.T(lang, "version", "Version", deps.Version, "BuildTime", deps.BuildDate), deps)
	default:
		deps.Logger.Debug("Unknown command", zap.String("command", message.Command()))
	}
}

// startPrompt creates or replaces the user's session and shows the first style.
func startPrompt(chatID, userID int64, prompt, lang string, deps BotDeps) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		sendText(chatID, deps.I18n.T(lang, "empty_prompt"), deps)
		return
	}
	sess := deps.Sessions.StartPrompt(userID, prompt)
	deps.Logger.Info("Prompt received", zap.Int64("user_id", userID), zap.Int64("chat_id", chatID), zap.Int("prompt_len", len(prompt)))
	sent, err := SendCarousel(chatID, BuildCarousel(sess, deps.Catalog, lang, deps.I18n), deps)
	if err != nil {
		return
	}
	deps.Sessions.AttachCarousel(userID, chatID, sent.MessageID)
}

func isRandomButton(text string, deps BotDeps) bool {
	for _, code := range deps.I18n.LanguageCodes() {
		if text == deps.I18n.T(code, "random_button") {
			return true
		}
	}
	return false
}

func randomPrompt(deps BotDeps) string {
	prompts := deps.Config.RandomPrompts
	if len(prompts) == 0 {
		return ""
	}
	return prompts[rand.Intn(len(prompts))]
}

func HandleStylesCommand(chatID int64, lang string, deps BotDeps) {
	var b strings.Builder
	b.WriteString(deps.I18n.T(lang, "styles_header"))
	for i, s := range deps.Catalog.All() {
		b.WriteString("\n")
		b.WriteString(deps.I18n.T(lang, "styles_item", "Index", i+1, "Name", s.Name, "ID", s.ID))
	}
	sendText(chatID, b.String(), deps)
}

func HandleCancelCommand(chatID, userID int64, lang string, deps BotDeps) {
	sess, ok := deps.Sessions.Get(userID)
	switch {
	case !ok:
		sendText(chatID, deps.I18n.T(lang, "cancel_nothing"), deps)
	case sess.State == session.StateGenerating:
		sendText(chatID, deps.I18n.T(lang, "cancel_busy"), deps)
	default:
		deps.Sessions.Clear(userID)
		sendText(chatID, deps.I18n.T(lang, "cancel_done"), deps)
	}
}

func HandleHistoryCommand(ctx context.Context, chatID, userID int64, lang string, deps BotDeps) {
	if deps.History == nil {
		sendText(chatID, deps.I18n.T(lang, "history_disabled"), deps)
		return
	}
	records, err := deps.History.Recent(ctx, userID, historyLimit)
	if err != nil {
		deps.Logger.Error("Failed to load history", zap.Int64("user_id", userID), zap.Error(err))
		sendText(chatID, deps.I18n.T(lang, "generation_failed"), deps)
		return
	}
	if len(records) == 0 {
		sendText(chatID, deps.I18n.T(lang, "history_empty"), deps)
		return
	}

	total, delivered, err := deps.History.CountByUser(ctx, userID)
	if err != nil {
		deps.Logger.Warn("Failed to count history", zap.Int64("user_id", userID), zap.Error(err))
		total = int64(len(records))
	}

	var b strings.Builder
	b.WriteString(deps.I18n.T(lang, "history_header", "Total", total, "Delivered", delivered))
	for _, rec := range records {
		key := "history_item_ok"
		if !rec.Success {
			key = "history_item_failed"
		}
		b.WriteString("\n")
		b.WriteString(deps.I18n.T(lang, key,
			"Time", rec.CreatedAt.Local().Format(time.DateTime),
			"Style", rec.StyleID,
			"Prompt", truncateUTF16(rec.Prompt, 80),
		))
	}
	sendText(chatID, b.String(), deps)
}

func HandleLanguageCommand(ctx context.Context, chatID, userID int64, arg, lang string, deps BotDeps) {
	available := strings.Join(deps.I18n.LanguageCodes(), ", ")
	if arg == "" {
		name, _ := deps.I18n.GetLanguageName(lang)
		sendText(chatID, deps.I18n.T(lang, "language_current", "Name", name, "Available", available), deps)
		return
	}

	code := strings.ToLower(arg)
	name, ok := deps.I18n.GetLanguageName(code)
	if !ok {
		sendText(chatID, deps.I18n.T(lang, "language_unknown", "Available", available), deps)
		return
	}
	deps.Languages.Set(userID, code)

	if deps.Preferences == nil {
		sendText(chatID, deps.I18n.T(code, "language_not_saved", "Name", name), deps)
		return
	}
	if err := deps.Preferences.SetLanguage(ctx, userID, code); err != nil {
		sendText(chatID, deps.I18n.T(code, "language_not_saved", "Name", name), deps)
		return
	}
	sendText(chatID, deps.I18n.T(code, "language_set", "Name", name), deps)
}
