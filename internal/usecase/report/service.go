package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
)

// ErrNoFeedback — у события пока нет отзывов; это отдельный исход, не ошибка
// суммаризации.
var ErrNoFeedback = errors.New("отзывов пока нет")

// Report — сводный отчёт сообщества по одному событию.
type Report struct {
	ActivityID      int64    `json:"activity_id"`
	EventTitle      string   `json:"event_title"`
	CommunityScore  int      `json:"community_score"`
	SentimentReport string   `json:"sentiment_report"`
	WordCloud       []string `json:"word_cloud"`
	Participants    int      `json:"participants"`
}

// Service строит отчёты по накопленным отзывам. Готовый отчёт кэшируется
// с TTL: свежие отзывы попадут в отчёт после истечения кэша.
type Service struct {
	activities domain.ActivityRepo
	feedbacks  domain.FeedbackRepo
	summarizer domain.ReportSummarizer
	cache      domain.Cache
	cacheTTL   time.Duration
	log        zerolog.Logger
}

// NewService создаёт агрегатор отчётов. cache может быть nil.
func NewService(activities domain.ActivityRepo, feedbacks domain.FeedbackRepo, summarizer domain.ReportSummarizer, cache domain.Cache, cacheTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{activities: activities, feedbacks: feedbacks, summarizer: summarizer, cache: cache, cacheTTL: cacheTTL, log: log}
}

// Build собирает отчёт по всем отзывам события на момент вызова.
// Пагинации нет: агрегат определён над полным набором отзывов.
func (s *Service) Build(ctx context.Context, activityID int64) (Report, error) {
	activity, err := s.activities.GetActivity(ctx, activityID)
	if errors.Is(err, domain.ErrActivityNotFound) {
		metrics.ObserveOutcome(metrics.ReportsTotal, "not_found")
		return Report{}, err
	}
	if err != nil {
		return Report{}, fmt.Errorf("получение события: %w", err)
	}

	if cached, ok := s.fromCache(ctx, activityID); ok {
		metrics.ObserveOutcome(metrics.ReportsTotal, "cached")
		return cached, nil
	}

	list, err := s.feedbacks.ListByActivity(ctx, activityID)
	if err != nil {
		return Report{}, fmt.Errorf("получение отзывов: %w", err)
	}
	if len(list) == 0 {
		metrics.ObserveOutcome(metrics.ReportsTotal, "empty")
		return Report{}, ErrNoFeedback
	}

	entries := make([]domain.FeedbackEntry, 0, len(list))
	for _, fb := range list {
		entries = append(entries, domain.FeedbackEntry{
			Transcription: fb.Transcription,
			Sentiment:     fb.SentimentScore,
			Keywords:      fb.Keywords,
		})
	}

	summary, err := s.summarizer.Summarize(ctx, activity.Title, entries)
	if err != nil {
		metrics.ObserveOutcome(metrics.ReportsTotal, "summarize_error")
		return Report{}, domain.NewCollaboratorError("summarizer", err)
	}

	built := Report{
		ActivityID:      activityID,
		EventTitle:      activity.Title,
		CommunityScore:  summary.CommunityScore,
		SentimentReport: summary.SentimentReport,
		WordCloud:       summary.WordCloud,
		Participants:    len(list),
	}
	s.toCache(ctx, activityID, built)
	metrics.ObserveOutcome(metrics.ReportsTotal, "built")
	return built, nil
}

func cacheKey(activityID int64) string {
	return fmt.Sprintf("report:%d", activityID)
}

func (s *Service) fromCache(ctx context.Context, activityID int64) (Report, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return Report{}, false
	}
	raw, err := s.cache.Get(ctx, cacheKey(activityID))
	if err != nil {
		s.log.Warn().Err(err).Msg("чтение кэша отчётов")
		return Report{}, false
	}
	if len(raw) == 0 {
		return Report{}, false
	}
	var cached Report
	if err := json.Unmarshal(raw, &cached); err != nil {
		return Report{}, false
	}
	return cached, true
}

func (s *Service) toCache(ctx context.Context, activityID int64, built Report) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(built)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(activityID), raw, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("запись кэша отчётов")
	}
}
