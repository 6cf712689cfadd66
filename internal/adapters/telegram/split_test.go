package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("b", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("c", 500))

	parts := SplitMessage(builder.String())
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > messageLimit {
			t.Fatalf("part %d exceeds limit: %d", i, length)
		}
	}
	if parts[0] != strings.Repeat("a", 3000) {
		t.Fatalf("unexpected content in first part")
	}
	if !strings.HasSuffix(parts[1], strings.Repeat("c", 500)) {
		t.Fatalf("second part should end with block of 'c'")
	}
}

func TestSplitMessageHardSplitsLongLine(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", messageLimit+100))
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len([]rune(parts[0])) != messageLimit {
		t.Fatalf("first part should be exactly at the limit, got %d", len([]rune(parts[0])))
	}
	if len([]rune(parts[1])) != 100 {
		t.Fatalf("second part should carry the remainder, got %d", len([]rune(parts[1])))
	}
}

func TestSplitMessageShortText(t *testing.T) {
	text := "hello world"
	parts := SplitMessage(text)
	if len(parts) != 1 {
		t.Fatalf("expected single part, got %d", len(parts))
	}
	if parts[0] != text {
		t.Fatalf("unexpected text: %q", parts[0])
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	parts := SplitMessage("   \n  ")
	if len(parts) != 0 {
		t.Fatalf("expected no parts for empty input, got %d", len(parts))
	}
}
