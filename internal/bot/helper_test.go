package bot

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateUTF16(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short ascii", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"ascii cut", "hello world", 6, "hello…"},
		{"cjk is one unit", "你好世界", 3, "你好…"},
		{"emoji is two units", "🎨🎨🎨", 4, "🎨…"},
		{"surrogate pair is not split", "a🎨b", 3, "a…"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateUTF16(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncateUTF16(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestCaptionsFitTelegramLimitWithAstralPrompt(t *testing.T) {
	env := newTestEnv(t)
	prompt := strings.Repeat("🚲", 1000)
	if utf16Len(prompt) != 2000 {
		t.Fatalf("utf16Len = %d", utf16Len(prompt))
	}

	for _, s := range env.deps.Catalog.All() {
		if n := utf16Len(env.deps.Pipeline.Caption(s, prompt, "en")); n > maxCaptionUnits {
			t.Errorf("photo caption for %s has %d units", s.ID, n)
		}
	}
	env.deps.Sessions.StartPrompt(testUser, prompt)
	sess, _ := env.deps.Sessions.Get(testUser)
	view := BuildCarousel(sess, env.deps.Catalog, "en", env.deps.I18n)
	if n := utf16Len(view.Caption); n > maxCaptionUnits {
		t.Errorf("carousel caption has %d units", n)
	}
}
