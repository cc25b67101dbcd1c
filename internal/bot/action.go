package bot

import "strings"

// ActionKind enumerates the inline-button actions the bot understands.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionPrev
	ActionNext
	ActionGenerate
)

const (
	dataPrevStyle      = "prev_style"
	dataNextStyle      = "next_style"
	dataGeneratePrefix = "generate_"
)

func (k ActionKind) String() string {
	switch k {
	case ActionPrev:
		return "prev"
	case ActionNext:
		return "next"
	case ActionGenerate:
		return "generate"
	default:
		return "unknown"
	}
}

// Action is a decoded callback token. StyleID is set only for ActionGenerate.
type Action struct {
	Kind    ActionKind
	StyleID string
}

// ParseAction decodes callback data. Everything after "generate_" is the style
// id, so ids may contain '-' and '_'.
func ParseAction(data string) Action {
	switch {
	case data == dataPrevStyle:
		return Action{Kind: ActionPrev}
	case data == dataNextStyle:
		return Action{Kind: ActionNext}
	case strings.HasPrefix(data, dataGeneratePrefix):
		id := strings.TrimPrefix(data, dataGeneratePrefix)
		if id == "" {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionGenerate, StyleID: id}
	default:
		return Action{Kind: ActionUnknown}
	}
}

// Data encodes the action back into callback data.
func (a Action) Data() string {
	switch a.Kind {
	case ActionPrev:
		return dataPrevStyle
	case ActionNext:
		return dataNextStyle
	case ActionGenerate:
		return dataGeneratePrefix + a.StyleID
	default:
		return ""
	}
}

func PrevAction() Action                   { return Action{Kind: ActionPrev} }
func NextAction() Action                   { return Action{Kind: ActionNext} }
func GenerateAction(styleID string) Action { return Action{Kind: ActionGenerate, StyleID: styleID} }
