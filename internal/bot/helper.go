package bot

import (
	"context"
	"errors"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Telegram limits, counted in UTF-16 code units
const (
	maxCaptionUnits = 1024
	maxMessageUnits = 4096
	// room left in a caption for the style name and decorations
	maxPromptInCaption = 900
)

// userLanguage resolves the language for user: cached choice, stored
// preference, Telegram client language, then the default.
func userLanguage(ctx context.Context, user *tgbotapi.User, deps BotDeps) string {
	if user == nil {
		return deps.I18n.DefaultLanguage()
	}
	if lang, ok := deps.Languages.Get(user.ID); ok {
		return lang
	}
	if deps.Preferences != nil {
		lang, err := deps.Preferences.GetLanguage(ctx, user.ID)
		switch {
		case err == nil && lang != "":
			lang = deps.I18n.Resolve(lang)
			deps.Languages.Set(user.ID, lang)
			return lang
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			deps.Logger.Error("Failed to get language preference", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}
	return deps.I18n.Resolve(user.LanguageCode)
}

// utf16Len is the length of s as Telegram counts it.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// truncateUTF16 shortens s to at most n UTF-16 code units, marking the cut
// with an ellipsis. Surrogate pairs are never split.
func truncateUTF16(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf16Len(s) <= n {
		return s
	}
	// "…" takes one unit
	budget := n - 1
	used := 0
	for i, r := range s {
		size := utf16.RuneLen(r)
		if used+size > budget {
			return s[:i] + "…"
		}
		used += size
	}
	return s
}

func sendText(chatID int64, text string, deps BotDeps) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, truncateUTF16(text, maxMessageUnits))
	sent, err := deps.Bot.Send(msg)
	if err != nil {
		deps.Logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return sent, err
}

// deleteMessage removes a message, logging failures at Warn.
func deleteMessage(chatID int64, messageID int, deps BotDeps) {
	deleteMessageWith(deps.Bot, deps.Logger, chatID, messageID)
}

func answerCallback(callbackID, text string, deps BotDeps) {
	if callbackID == "" {
		return
	}
	if _, err := deps.Bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		deps.Logger.Debug("Failed to answer callback query", zap.Error(err))
	}
}

// isNotModified reports the harmless error Telegram returns when an edit changes nothing.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func updateUserID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	case update.EditedMessage != nil && update.EditedMessage.From != nil:
		return update.EditedMessage.From.ID
	default:
		return 0
	}
}

var errNeedsResend = errors.New("carousel must be resent")
