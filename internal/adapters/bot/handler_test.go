package bot

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/report"
)

func TestIsNumeric(t *testing.T) {
	cases := map[string]bool{
		"7":     true,
		"123":   true,
		"":      false,
		" 7":    false,
		"7a":    false,
		"-3":    false,
		"1.5":   false,
		"seven": false,
	}
	for input, want := range cases {
		if got := isNumeric(input); got != want {
			t.Fatalf("isNumeric(%q) = %v, ожидали %v", input, got, want)
		}
	}
}

func TestRenderActivityCard(t *testing.T) {
	card := renderActivityCard(domain.Activity{
		ID:               7,
		Title:            "Go Meetup",
		ValidationStatus: true,
		ValidationTags:   map[string]bool{"is_activity": true, "is_commercial": false},
		AISummary:        "community meetup",
	})
	if !strings.Contains(card, "✅") || !strings.Contains(card, "Go Meetup") {
		t.Fatalf("неожиданная карточка: %q", card)
	}
	if !strings.Contains(card, "is_activity") || strings.Contains(card, "is_commercial") {
		t.Fatalf("в карточке только положительные теги: %q", card)
	}

	rejected := renderActivityCard(domain.Activity{ID: 8, Title: "Shop", ValidationStatus: false})
	if !strings.Contains(rejected, "❌") || !strings.Contains(rejected, "Rejected") {
		t.Fatalf("отклонённая карточка должна это показывать: %q", rejected)
	}
}

func TestRenderFeedbackCardClipsTranscript(t *testing.T) {
	card := renderFeedbackCard(domain.Feedback{
		Transcription:  strings.Repeat("a", 150),
		SentimentScore: 0.9,
		Keywords:       []string{"great", "event"},
	})
	if !strings.Contains(card, strings.Repeat("a", 100)+"...") {
		t.Fatalf("транскрипт должен обрезаться: %q", card)
	}
	if strings.Contains(card, strings.Repeat("a", 101)) {
		t.Fatalf("транскрипт длиннее лимита: %q", card)
	}
}

func TestRenderReport(t *testing.T) {
	text := renderReport(report.Report{
		EventTitle:      "Go Meetup",
		CommunityScore:  78,
		SentimentReport: "mostly positive",
		WordCloud:       []string{"go", "meetup"},
		Participants:    5,
	})
	for _, want := range []string{"Go Meetup", "78/100", "Participants: 5", "mostly positive", "go, meetup"} {
		if !strings.Contains(text, want) {
			t.Fatalf("в отчёте нет %q: %q", want, text)
		}
	}
}

func TestVoiceFileIDPrecedence(t *testing.T) {
	msg := &tgbotapi.Message{
		Voice: &tgbotapi.Voice{FileID: "voice1"},
		Audio: &tgbotapi.Audio{FileID: "audio1"},
	}
	if got := voiceFileID(msg); got != "voice1" {
		t.Fatalf("voice имеет приоритет, получили %q", got)
	}
	msg.Voice = nil
	if got := voiceFileID(msg); got != "audio1" {
		t.Fatalf("ожидали audio, получили %q", got)
	}
	msg.Audio = nil
	if got := voiceFileID(msg); got != "" {
		t.Fatalf("без вложений пустой id, получили %q", got)
	}
}
