package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.ActivityRepo = (*Postgres)(nil)
var _ domain.FeedbackRepo = (*Postgres)(nil)

const uniqueViolation = "23505"

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateActivity вставляет событие. Нарушение уникальности URL переводится
// в domain.ErrActivityExists; само ограничение в БД — гарант дедупликации,
// предварительная проверка по URL лишь улучшает сообщение об ошибке.
func (p *Postgres) CreateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	tags, err := json.Marshal(activity.ValidationTags)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("marshal tags: %w", err)
	}
	meta := activity.MetaJSON
	if meta == nil {
		meta = []byte("{}")
	}

	var location sql.NullString
	if activity.Location != "" {
		location = sql.NullString{String: activity.Location, Valid: true}
	}

	start := time.Now()
	err = p.pool.QueryRow(ctx, `
INSERT INTO activities (url, title, location, source_domain, validation_status, validation_tags, ai_summary, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at
`, activity.URL, activity.Title, location, activity.SourceDomain, activity.ValidationStatus, tags, activity.AISummary, meta).
		Scan(&activity.ID, &activity.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "activities_insert", "activities", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Activity{}, domain.ErrActivityExists
		}
		return domain.Activity{}, err
	}
	return activity, nil
}

// GetActivity возвращает событие по id.
func (p *Postgres) GetActivity(ctx context.Context, id int64) (domain.Activity, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	activity, err := p.scanActivity(p.pool.QueryRow(ctx, `
SELECT id, url, title, location, source_domain, validation_status, validation_tags, ai_summary, metadata, created_at
FROM activities WHERE id = $1
`, id))
	metrics.ObserveNetworkRequest("postgres", "activities_get", "activities", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	return activity, err
}

// GetActivityByURL возвращает событие по точному URL.
func (p *Postgres) GetActivityByURL(ctx context.Context, url string) (domain.Activity, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	activity, err := p.scanActivity(p.pool.QueryRow(ctx, `
SELECT id, url, title, location, source_domain, validation_status, validation_tags, ai_summary, metadata, created_at
FROM activities WHERE url = $1
`, url))
	metrics.ObserveNetworkRequest("postgres", "activities_get_by_url", "activities", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	return activity, err
}

// ListValidated возвращает последние одобренные события, новые первыми.
func (p *Postgres) ListValidated(ctx context.Context, limit int) ([]domain.Activity, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, url, title, location, source_domain, validation_status, validation_tags, ai_summary, metadata, created_at
FROM activities
WHERE validation_status = TRUE
ORDER BY id DESC
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "activities_list_validated", "activities", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		activity, err := p.scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

// CreateFeedback вставляет отзыв. Нарушение ограничения unique_user_activity
// переводится в domain.ErrDuplicateFeedback.
func (p *Postgres) CreateFeedback(ctx context.Context, feedback domain.Feedback) (domain.Feedback, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	keywords, err := json.Marshal(feedback.Keywords)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("marshal keywords: %w", err)
	}

	var handle sql.NullString
	if feedback.UserHandle != "" {
		handle = sql.NullString{String: feedback.UserHandle, Valid: true}
	}

	start := time.Now()
	err = p.pool.QueryRow(ctx, `
INSERT INTO feedbacks (activity_id, user_id, user_handle, audio_url, transcription, sentiment_score, keywords)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at
`, feedback.ActivityID, feedback.UserID, handle, feedback.AudioReference, feedback.Transcription, feedback.SentimentScore, keywords).
		Scan(&feedback.ID, &feedback.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "feedbacks_insert", "feedbacks", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Feedback{}, domain.ErrDuplicateFeedback
		}
		return domain.Feedback{}, err
	}
	return feedback, nil
}

// ListByActivity возвращает все отзывы о событии.
func (p *Postgres) ListByActivity(ctx context.Context, activityID int64) ([]domain.Feedback, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, activity_id, user_id, user_handle, audio_url, transcription, sentiment_score, keywords, created_at
FROM feedbacks
WHERE activity_id = $1
ORDER BY id
`, activityID)
	metrics.ObserveNetworkRequest("postgres", "feedbacks_list_by_activity", "feedbacks", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feedbacks []domain.Feedback
	for rows.Next() {
		var (
			fb       domain.Feedback
			handle   sql.NullString
			keywords []byte
		)
		if err := rows.Scan(&fb.ID, &fb.ActivityID, &fb.UserID, &handle, &fb.AudioReference, &fb.Transcription, &fb.SentimentScore, &keywords, &fb.CreatedAt); err != nil {
			return nil, err
		}
		if handle.Valid {
			fb.UserHandle = handle.String
		}
		if len(keywords) > 0 {
			if err := json.Unmarshal(keywords, &fb.Keywords); err != nil {
				return nil, fmt.Errorf("unmarshal keywords: %w", err)
			}
		}
		feedbacks = append(feedbacks, fb)
	}
	return feedbacks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *Postgres) scanActivity(row rowScanner) (domain.Activity, error) {
	var (
		activity domain.Activity
		location sql.NullString
		tags     []byte
		summary  sql.NullString
	)
	if err := row.Scan(&activity.ID, &activity.URL, &activity.Title, &location, &activity.SourceDomain, &activity.ValidationStatus, &tags, &summary, &activity.MetaJSON, &activity.CreatedAt); err != nil {
		return domain.Activity{}, err
	}
	if location.Valid {
		activity.Location = location.String
	}
	if summary.Valid {
		activity.AISummary = summary.String
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &activity.ValidationTags); err != nil {
			return domain.Activity{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return activity, nil
}
