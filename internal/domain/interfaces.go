package domain

import (
	"context"
	"time"
)

// ActivityRepo управляет сохранёнными событиями.
type ActivityRepo interface {
	CreateActivity(ctx context.Context, activity Activity) (Activity, error)
	GetActivity(ctx context.Context, id int64) (Activity, error)
	GetActivityByURL(ctx context.Context, url string) (Activity, error)
	ListValidated(ctx context.Context, limit int) ([]Activity, error)
}

// FeedbackRepo управляет отзывами.
type FeedbackRepo interface {
	CreateFeedback(ctx context.Context, feedback Feedback) (Feedback, error)
	ListByActivity(ctx context.Context, activityID int64) ([]Feedback, error)
}

// SessionStore хранит состояние диалога по пользователям. Операции Take*
// читают и очищают значение атомарно; конкурентные вызовы для одного
// пользователя сериализуются, разные пользователи друг друга не блокируют.
type SessionStore interface {
	Get(userID int64) Session
	SetSelectedEvent(userID, eventID int64)
	TakeSelectedEvent(userID int64) (int64, bool)
	ClearSelectedEvent(userID int64)
	EnterTestMode(userID int64)
	ExitTestMode(userID int64)
	InTestMode(userID int64) bool
	SetPendingVoiceprint(userID int64, vp Voiceprint)
	TakePendingVoiceprint(userID int64) (Voiceprint, bool)
	SetActivityHint(userID int64, hint string)
	ActivityHint(userID int64) string
}

// PageFetcher выгружает страницу события и извлекает заголовок и текст.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// ContentClassifier проверяет, описывает ли страница настоящее событие.
type ContentClassifier interface {
	Classify(ctx context.Context, title, body string) (Classification, error)
}

// SpeechAnalyzer транскрибирует аудио и оценивает тональность.
type SpeechAnalyzer interface {
	Analyze(ctx context.Context, audio []byte, hint AnalysisHint) (SpeechAnalysis, error)
}

// VoiceprintService извлекает и сравнивает голосовые отпечатки.
type VoiceprintService interface {
	Extract(ctx context.Context, audio []byte) (Voiceprint, error)
	Compare(ctx context.Context, first, second Voiceprint) (VoiceMatch, error)
}

// ReportSummarizer строит сводный отчёт по набору отзывов.
type ReportSummarizer interface {
	Summarize(ctx context.Context, eventTitle string, entries []FeedbackEntry) (CommunityReport, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
