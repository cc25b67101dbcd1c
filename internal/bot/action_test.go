package bot

import "testing"

func TestParseAction(t *testing.T) {
	tests := []struct {
		data string
		want Action
	}{
		{"prev_style", Action{Kind: ActionPrev}},
		{"next_style", Action{Kind: ActionNext}},
		{"generate_anime", Action{Kind: ActionGenerate, StyleID: "anime"}},
		{"generate_digital-art", Action{Kind: ActionGenerate, StyleID: "digital-art"}},
		{"generate_oil_paint", Action{Kind: ActionGenerate, StyleID: "oil_paint"}},
		{"generate_", Action{Kind: ActionUnknown}},
		{"", Action{Kind: ActionUnknown}},
		{"next_style_extra", Action{Kind: ActionUnknown}},
		{"GENERATE_anime", Action{Kind: ActionUnknown}},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			if got := ParseAction(tt.data); got != tt.want {
				t.Errorf("ParseAction(%q) = %+v, want %+v", tt.data, got, tt.want)
			}
		})
	}
}

func TestActionDataRoundTrip(t *testing.T) {
	for _, a := range []Action{PrevAction(), NextAction(), GenerateAction("none"), GenerateAction("digital-art")} {
		if got := ParseAction(a.Data()); got != a {
			t.Errorf("ParseAction(%q) = %+v, want %+v", a.Data(), got, a)
		}
	}
	if data := (Action{}).Data(); data != "" {
		t.Errorf("unknown action data = %q", data)
	}
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	env := newTestEnv(t)
	for _, s := range env.deps.Catalog.All() {
		if n := len(GenerateAction(s.ID).Data()); n > 64 {
			t.Errorf("callback data for %q is %d bytes", s.ID, n)
		}
	}
}
