package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nerdneilsfield/telegram-style-bot/internal/i18n"
	"github.com/nerdneilsfield/telegram-style-bot/internal/session"
	"github.com/nerdneilsfield/telegram-style-bot/internal/style"
	"go.uber.org/zap"
)

// CarouselView is everything needed to render one carousel page.
type CarouselView struct {
	Style    style.Style
	Prompt   string
	Position int // 1-based
	Total    int
	Caption  string
	Keyboard tgbotapi.InlineKeyboardMarkup
}

// BuildCarousel renders the session's current style. It has no side effects.
func BuildCarousel(sess session.Session, catalog *style.Catalog, lang string, tr *i18n.Manager) CarouselView {
	index := style.Wrap(sess.StyleIndex, catalog.Len())
	current := catalog.At(index)

	caption := tr.T(lang, "carousel_caption",
		"Name", current.Name,
		"Position", index+1,
		"Total", catalog.Len(),
		"Prompt", truncateUTF16(sess.Prompt, maxPromptInCaption),
	)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tr.T(lang, "button_prev"), PrevAction().Data()),
			tgbotapi.NewInlineKeyboardButtonData(tr.T(lang, "button_next"), NextAction().Data()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tr.T(lang, "button_generate", "Name", current.Name), GenerateAction(current.ID).Data()),
		),
	)

	return CarouselView{
		Style:    current,
		Prompt:   sess.Prompt,
		Position: index + 1,
		Total:    catalog.Len(),
		Caption:  truncateUTF16(caption, maxCaptionUnits),
		Keyboard: keyboard,
	}
}

// SendCarousel posts the view as a photo with the style preview. When the
// preview is missing or Telegram cannot fetch it, the same caption and
// buttons are sent as a text message instead.
func SendCarousel(chatID int64, view CarouselView, deps BotDeps) (tgbotapi.Message, error) {
	if view.Style.PreviewURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(view.Style.PreviewURL))
		photo.Caption = view.Caption
		photo.ReplyMarkup = view.Keyboard
		sent, err := deps.Bot.Send(photo)
		if err == nil {
			return sent, nil
		}
		deps.Logger.Warn("Failed to send style preview, falling back to text",
			zap.Int64("chat_id", chatID),
			zap.String("style_id", view.Style.ID),
			zap.Error(err))
	}

	msg := tgbotapi.NewMessage(chatID, view.Caption)
	msg.ReplyMarkup = view.Keyboard
	sent, err := deps.Bot.Send(msg)
	if err != nil {
		deps.Logger.Error("Failed to send carousel", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return sent, err
}

// EditCarousel updates an existing carousel message in place. Photo messages
// get their media swapped, text messages their text. If the edit is rejected
// the old message is removed and a fresh carousel is sent. It returns the
// message that shows the carousel afterwards.
func EditCarousel(message *tgbotapi.Message, view CarouselView, deps BotDeps) (tgbotapi.Message, error) {
	chatID := message.Chat.ID
	var err error

	switch {
	case len(message.Photo) > 0 && view.Style.PreviewURL != "":
		media := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(view.Style.PreviewURL))
		media.Caption = view.Caption
		edit := tgbotapi.EditMessageMediaConfig{
			BaseEdit: tgbotapi.BaseEdit{
				ChatID:      chatID,
				MessageID:   message.MessageID,
				ReplyMarkup: &view.Keyboard,
			},
			Media: media,
		}
		_, err = deps.Bot.Send(edit)
	case len(message.Photo) == 0:
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, message.MessageID, view.Caption, view.Keyboard)
		_, err = deps.Bot.Send(edit)
	default:
		// photo message but the new style has no preview: a photo cannot become text
		err = errNeedsResend
	}

	if err == nil || isNotModified(err) {
		return *message, nil
	}
	deps.Logger.Debug("Carousel edit failed, sending a new one",
		zap.Int64("chat_id", chatID),
		zap.Int("message_id", message.MessageID),
		zap.Error(err))
	deleteMessage(chatID, message.MessageID, deps)
	return SendCarousel(chatID, view, deps)
}

// mainKeyboard is the persistent reply keyboard with the random prompt button.
func mainKeyboard(lang string, tr *i18n.Manager) tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(tr.T(lang, "random_button"))),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}
