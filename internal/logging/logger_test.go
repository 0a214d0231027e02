package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFor_CategoryLevelOverridesRoot(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{
		Level:      "debug",
		Format:     "json",
		Categories: map[string]string{"OAuth": "warn"},
		Output:     &buf,
	})
	defer Setup(Options{Level: "info"})

	For("oauth").Info().Msg("noisy provider warning")
	For("db").Debug().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "noisy provider warning") {
		t.Errorf("oauth info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"category":"db"`) {
		t.Errorf("db debug line missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
