package util

import (
	"strings"
	"testing"
)

func TestTruncate_ShortString(t *testing.T) {
	input := "short log"
	if result := Truncate(input, DefaultLogMaxLen); result != input {
		t.Errorf("Truncate() should not truncate short strings, got %q", result)
	}
}

func TestTruncate_ExactLimit(t *testing.T) {
	input := "12345678901234567890"
	if result := Truncate(input, 20); result != input {
		t.Errorf("Truncate() should not truncate at exact limit, got %q", result)
	}
}

func TestTruncate_LongString(t *testing.T) {
	result := Truncate("1234567890abcdefghij", 10)
	if result != "1234567890... [truncated, 20 bytes total]" {
		t.Errorf("Truncate() = %q", result)
	}
}

func TestTruncateBytes_LongBytes(t *testing.T) {
	input := []byte(strings.Repeat("x", 2000))
	result := TruncateBytes(input)
	if !strings.HasPrefix(result, string(input[:DefaultLogMaxLen])+"...") {
		t.Error("TruncateBytes() should preserve first DefaultLogMaxLen bytes")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"abc":                  "****",
		"12345678":             "****",
		"eyJ0eXAiOiJKV1QiLCJh": "eyJ0...LCJh",
	}
	for in, want := range tests {
		if got := MaskSecret(in); got != want {
			t.Errorf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
