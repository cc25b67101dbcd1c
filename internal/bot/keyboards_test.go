package bot

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nerdneilsfield/telegram-style-bot/internal/session"
)

func TestBuildCarousel(t *testing.T) {
	env := newTestEnv(t)
	sess := session.Session{UserID: testUser, Prompt: "a red bicycle", StyleIndex: -1, State: session.StateAwaitingStyleChoice}

	view := BuildCarousel(sess, env.deps.Catalog, "en", env.deps.I18n)
	if view.Style.ID != "digital-art" || view.Position != 4 || view.Total != 4 {
		t.Errorf("view = %+v", view)
	}
	if view.Caption != "Digital Art (4/4)\n\"a red bicycle\"" {
		t.Errorf("caption = %q", view.Caption)
	}

	rows := view.Keyboard.InlineKeyboard
	if len(rows) != 2 || len(rows[0]) != 2 || len(rows[1]) != 1 {
		t.Fatalf("keyboard layout = %v", rows)
	}
	wantData := []string{"prev_style", "next_style", "generate_digital-art"}
	gotData := []string{*rows[0][0].CallbackData, *rows[0][1].CallbackData, *rows[1][0].CallbackData}
	for i := range wantData {
		if gotData[i] != wantData[i] {
			t.Errorf("button %d data = %q, want %q", i, gotData[i], wantData[i])
		}
	}
}

func TestBuildCarouselTruncatesLongPrompt(t *testing.T) {
	env := newTestEnv(t)
	sess := session.Session{Prompt: strings.Repeat("界", 3000)}
	view := BuildCarousel(sess, env.deps.Catalog, "en", env.deps.I18n)
	if n := utf16Len(view.Caption); n > maxCaptionUnits {
		t.Errorf("caption has %d UTF-16 units", n)
	}
}

func TestSendCarouselFallsBackToText(t *testing.T) {
	env := newTestEnv(t)
	env.sender.failPhotoURL = true
	view := BuildCarousel(session.Session{Prompt: "x"}, env.deps.Catalog, "en", env.deps.I18n)

	if _, err := SendCarousel(testUser, view, env.deps); err != nil {
		t.Fatalf("SendCarousel: %v", err)
	}
	texts := env.sender.texts()
	if len(texts) != 1 || texts[0].Text != view.Caption {
		t.Fatalf("texts = %+v", texts)
	}
	if _, ok := texts[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Errorf("fallback message lost its keyboard: %T", texts[0].ReplyMarkup)
	}
}

func TestEditCarouselSwapsMedia(t *testing.T) {
	env := newTestEnv(t)
	view := BuildCarousel(session.Session{Prompt: "x", StyleIndex: 2}, env.deps.Catalog, "en", env.deps.I18n)

	shown, err := EditCarousel(photoMessage(testUser, 7), view, env.deps)
	if err != nil {
		t.Fatalf("EditCarousel: %v", err)
	}
	if shown.MessageID != 7 {
		t.Errorf("carousel moved to message %d", shown.MessageID)
	}
	edits := env.sender.mediaEdits()
	if len(edits) != 1 || edits[0].MessageID != 7 {
		t.Fatalf("edits = %+v", edits)
	}
	media := edits[0].Media.(tgbotapi.InputMediaPhoto)
	if media.Media != tgbotapi.FileURL(view.Style.PreviewURL) || media.Caption != view.Caption {
		t.Errorf("media = %+v", media)
	}
	if len(env.sender.deletedIDs()) != 0 {
		t.Error("successful edit must not delete the message")
	}
}

func TestEditCarouselTextMessage(t *testing.T) {
	env := newTestEnv(t)
	view := BuildCarousel(session.Session{Prompt: "x", StyleIndex: 1}, env.deps.Catalog, "en", env.deps.I18n)
	textMessage := &tgbotapi.Message{MessageID: 3, Chat: privateChat(testUser), Text: "old"}

	if _, err := EditCarousel(textMessage, view, env.deps); err != nil {
		t.Fatalf("EditCarousel: %v", err)
	}
	env.sender.mu.Lock()
	defer env.sender.mu.Unlock()
	if len(env.sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(env.sender.sent))
	}
	edit, ok := env.sender.sent[0].(tgbotapi.EditMessageTextConfig)
	if !ok || edit.Text != view.Caption || edit.MessageID != 3 {
		t.Errorf("edit = %+v", env.sender.sent[0])
	}
}

func TestEditCarouselResendsOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sender.failEdits = true
	view := BuildCarousel(session.Session{Prompt: "x", StyleIndex: 1}, env.deps.Catalog, "en", env.deps.I18n)

	shown, err := EditCarousel(photoMessage(testUser, 5), view, env.deps)
	if err != nil {
		t.Fatalf("EditCarousel: %v", err)
	}
	if shown.MessageID == 5 || shown.MessageID == 0 {
		t.Errorf("resent carousel id = %d", shown.MessageID)
	}
	if ids := env.sender.deletedIDs(); len(ids) != 1 || ids[0] != 5 {
		t.Errorf("deleted = %v, want [5]", ids)
	}
	if photos := env.sender.previewPhotos(); len(photos) != 1 || photos[0].Caption != view.Caption {
		t.Errorf("resent photos = %+v", photos)
	}
}

func TestIsNotModified(t *testing.T) {
	if !isNotModified(errorString("Bad Request: message is not modified: specified new message content")) {
		t.Error("expected not-modified error to be recognized")
	}
	if isNotModified(nil) || isNotModified(errTelegram) {
		t.Error("unexpected not-modified match")
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }
