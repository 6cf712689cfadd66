package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
)

type stubActivityRepo struct {
	activity domain.Activity
	err      error
}

func (s *stubActivityRepo) CreateActivity(_ context.Context, a domain.Activity) (domain.Activity, error) {
	return a, nil
}

func (s *stubActivityRepo) GetActivity(context.Context, int64) (domain.Activity, error) {
	return s.activity, s.err
}

func (s *stubActivityRepo) GetActivityByURL(context.Context, string) (domain.Activity, error) {
	return s.activity, s.err
}

func (s *stubActivityRepo) ListValidated(context.Context, int) ([]domain.Activity, error) {
	return nil, nil
}

type stubFeedbackRepo struct {
	list []domain.Feedback
}

func (s *stubFeedbackRepo) CreateFeedback(_ context.Context, fb domain.Feedback) (domain.Feedback, error) {
	return fb, nil
}

func (s *stubFeedbackRepo) ListByActivity(context.Context, int64) ([]domain.Feedback, error) {
	return s.list, nil
}

type stubSummarizer struct {
	report  domain.CommunityReport
	err     error
	calls   int
	entries []domain.FeedbackEntry
}

func (s *stubSummarizer) Summarize(_ context.Context, _ string, entries []domain.FeedbackEntry) (domain.CommunityReport, error) {
	s.calls++
	s.entries = entries
	return s.report, s.err
}

type memoryCache struct {
	values map[string][]byte
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if c.values == nil {
		c.values = make(map[string][]byte)
	}
	c.values[key] = value
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	return c.values[key], nil
}

func TestBuildUnknownActivity(t *testing.T) {
	activities := &stubActivityRepo{err: domain.ErrActivityNotFound}
	service := NewService(activities, &stubFeedbackRepo{}, &stubSummarizer{}, nil, 0, zerolog.Nop())

	_, err := service.Build(context.Background(), 99)
	if !errors.Is(err, domain.ErrActivityNotFound) {
		t.Fatalf("ожидали ErrActivityNotFound, получили %v", err)
	}
}

func TestBuildWithoutFeedback(t *testing.T) {
	activities := &stubActivityRepo{activity: domain.Activity{ID: 7, Title: "Go Meetup"}}
	summarizer := &stubSummarizer{}
	service := NewService(activities, &stubFeedbackRepo{}, summarizer, nil, 0, zerolog.Nop())

	_, err := service.Build(context.Background(), 7)
	if !errors.Is(err, ErrNoFeedback) {
		t.Fatalf("ожидали ErrNoFeedback, получили %v", err)
	}
	if summarizer.calls != 0 {
		t.Fatalf("суммаризатор не должен вызываться без отзывов")
	}
}

func TestBuildAggregatesFeedback(t *testing.T) {
	activities := &stubActivityRepo{activity: domain.Activity{ID: 7, Title: "Go Meetup"}}
	feedbacks := &stubFeedbackRepo{list: []domain.Feedback{
		{Transcription: "great", SentimentScore: 0.9, Keywords: []string{"great"}},
		{Transcription: "loud venue", SentimentScore: 0.4, Keywords: []string{"venue"}},
	}}
	summarizer := &stubSummarizer{report: domain.CommunityReport{
		SentimentReport: "mostly positive",
		WordCloud:       []string{"great", "venue"},
		CommunityScore:  78,
	}}
	service := NewService(activities, feedbacks, summarizer, nil, 0, zerolog.Nop())

	rep, err := service.Build(context.Background(), 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rep.EventTitle != "Go Meetup" || rep.CommunityScore != 78 || rep.Participants != 2 {
		t.Fatalf("неожиданный отчёт: %+v", rep)
	}
	if len(summarizer.entries) != 2 || summarizer.entries[1].Sentiment != 0.4 {
		t.Fatalf("суммаризатор должен получить все отзывы: %+v", summarizer.entries)
	}
}

func TestBuildSummarizerFailure(t *testing.T) {
	activities := &stubActivityRepo{activity: domain.Activity{ID: 7, Title: "Go Meetup"}}
	feedbacks := &stubFeedbackRepo{list: []domain.Feedback{{Transcription: "ok"}}}
	summarizer := &stubSummarizer{err: errors.New("model overloaded")}
	service := NewService(activities, feedbacks, summarizer, nil, 0, zerolog.Nop())

	_, err := service.Build(context.Background(), 7)
	if !domain.IsCollaboratorError(err) {
		t.Fatalf("ожидали ошибку коллаборатора, получили %v", err)
	}
}

func TestBuildUsesCache(t *testing.T) {
	activities := &stubActivityRepo{activity: domain.Activity{ID: 7, Title: "Go Meetup"}}
	feedbacks := &stubFeedbackRepo{list: []domain.Feedback{{Transcription: "ok", SentimentScore: 0.8}}}
	summarizer := &stubSummarizer{report: domain.CommunityReport{CommunityScore: 80}}
	cache := &memoryCache{}
	service := NewService(activities, feedbacks, summarizer, cache, time.Minute, zerolog.Nop())

	first, err := service.Build(context.Background(), 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := service.Build(context.Background(), 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if summarizer.calls != 1 {
		t.Fatalf("второй вызов должен прийти из кэша, вызовов суммаризатора: %d", summarizer.calls)
	}
	if first.CommunityScore != second.CommunityScore || first.Participants != second.Participants {
		t.Fatalf("кэшированный отчёт отличается: %+v vs %+v", first, second)
	}

	var cached Report
	if err := json.Unmarshal(cache.values["report:7"], &cached); err != nil {
		t.Fatalf("в кэше должен лежать JSON отчёта: %v", err)
	}
	if cached.CommunityScore != 80 {
		t.Fatalf("неожиданный кэш: %+v", cached)
	}
}
