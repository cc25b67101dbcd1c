package style

import (
	"errors"
	"fmt"
	"regexp"
)

// NoneID is the id of the style that leaves the prompt untouched.
const NoneID = "none"

// MaxIDLength keeps "generate_<id>" inside Telegram's 64 byte callback data limit.
const MaxIDLength = 32

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var (
	ErrEmptyCatalog = errors.New("style catalog is empty")
	ErrMissingNone  = errors.New("style catalog must contain exactly one \"none\" style")
)

// Style is a named prompt transformation shown in the carousel.
type Style struct {
	ID           string
	Name         string
	PreviewURL   string
	PromptPrefix string
}

// IsNone reports whether s is the pass-through style.
func (s Style) IsNone() bool {
	return s.ID == NoneID
}

// Catalog is the ordered, read-only list of styles. Order defines carousel traversal.
type Catalog struct {
	styles []Style
	byID   map[string]int
}

// New validates styles and builds a catalog. The slice is copied.
func New(styles []Style) (*Catalog, error) {
	if len(styles) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		styles: make([]Style, len(styles)),
		byID:   make(map[string]int, len(styles)),
	}
	copy(c.styles, styles)

	noneCount := 0
	for i, s := range c.styles {
		if s.ID == "" || len(s.ID) > MaxIDLength || !idPattern.MatchString(s.ID) {
			return nil, fmt.Errorf("style %d: invalid id %q", i, s.ID)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("style %q: name is required", s.ID)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("style %q: duplicate id", s.ID)
		}
		if s.IsNone() {
			if s.PromptPrefix != "" {
				return nil, fmt.Errorf("style %q: prompt prefix must be empty", s.ID)
			}
			noneCount++
		}
		c.byID[s.ID] = i
	}
	if noneCount != 1 {
		return nil, ErrMissingNone
	}

	return c, nil
}

// Default returns the built-in catalog used when the config declares no styles.
func Default() *Catalog {
	c, err := New(DefaultStyles())
	if err != nil {
		panic(fmt.Sprintf("default style catalog is invalid: %v", err))
	}
	return c
}

// DefaultStyles returns a fresh copy of the built-in styles.
func DefaultStyles() []Style {
	return []Style{
		{
			ID:           NoneID,
			Name:         "None (Original Prompt)",
			PreviewURL:   "https://www.rws.com/media/images/scs-ai-new-img-hero-1920x1080b-03_tcm228-261952.webp",
			PromptPrefix: "",
		},
		{
			ID:           "realistic",
			Name:         "Realistic",
			PreviewURL:   "https://scitechdaily.com/images/Realistic-Face-Close-Up-Art-Concept.jpg",
			PromptPrefix: "realistic style, highly detailed, photorealistic, ",
		},
		{
			ID:           "anime",
			Name:         "Anime",
			PreviewURL:   "https://cdn-ilbddpb.nitrocdn.com/NtLGjbwnqkJcuwMPakRycZOtLkWgNRrM/assets/images/optimized/rev-97f5013/aihustlesage.com/wp-content/uploads/2024/08/word-image-720-2.jpeg",
			PromptPrefix: "anime style, vibrant colors, Japanese animation, ",
		},
		{
			ID:           "digital-art",
			Name:         "Digital Art",
			PreviewURL:   "https://fineartshippers.com/wp-content/uploads/2024/12/digital-art-and-artificial-intelligence.png",
			PromptPrefix: "digital art, concept art, intricate details, ",
		},
	}
}

// Get looks up a style by id.
func (c *Catalog) Get(id string) (Style, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Style{}, false
	}
	return c.styles[i], true
}

// At returns the style at index modulo Len. Negative indexes wrap from the end.
func (c *Catalog) At(index int) Style {
	return c.styles[Wrap(index, len(c.styles))]
}

// Len returns the number of styles.
func (c *Catalog) Len() int {
	return len(c.styles)
}

// All returns a copy of the styles in carousel order.
func (c *Catalog) All() []Style {
	out := make([]Style, len(c.styles))
	copy(out, c.styles)
	return out
}

// ComposePrompt prepends the style prefix to prompt. No separator is added.
func ComposePrompt(s Style, prompt string) string {
	return s.PromptPrefix + prompt
}

// Wrap is true modulo: the result is always in [0, n).
func Wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	r := i % n
	if r < 0 {
		r += n
	}
	return r
}
