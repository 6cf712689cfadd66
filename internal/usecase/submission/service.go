package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
)

// ErrInvalidURL возвращается для URL без схемы или хоста; сеть не трогаем.
var ErrInvalidURL = errors.New("некорректный URL")

const (
	maxBodyRunes  = 4000
	maxTitleRunes = 255
	fallbackTitle = "Untitled"
)

// Service реализует конвейер подачи события: валидация URL, выгрузка
// страницы, AI-классификация, дедупликация и сохранение.
type Service struct {
	activities domain.ActivityRepo
	fetcher    domain.PageFetcher
	classifier domain.ContentClassifier
	log        zerolog.Logger
}

// Result — итог обработки заявки. AlreadyExists — нормальный исход,
// не ошибка: Activity тогда ссылается на ранее созданную запись.
type Result struct {
	Activity      domain.Activity
	AlreadyExists bool
}

// NewService создаёт конвейер подачи.
func NewService(activities domain.ActivityRepo, fetcher domain.PageFetcher, classifier domain.ContentClassifier, log zerolog.Logger) *Service {
	return &Service{activities: activities, fetcher: fetcher, classifier: classifier, log: log}
}

// Submit обрабатывает одну заявку. Внешние сбои терминальны: ни одного
// повтора, разговорная задержка важнее устойчивости.
func (s *Service) Submit(ctx context.Context, rawURL string) (Result, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		metrics.ObserveOutcome(metrics.SubmissionsTotal, "invalid_url")
		return Result{}, ErrInvalidURL
	}
	target := parsed.String()

	page, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		metrics.ObserveOutcome(metrics.SubmissionsTotal, "fetch_error")
		return Result{}, domain.NewCollaboratorError("scraper", err)
	}

	classification, err := s.classifier.Classify(ctx, page.Title, clipRunes(page.Text, maxBodyRunes))
	if err != nil {
		metrics.ObserveOutcome(metrics.SubmissionsTotal, "classify_error")
		return Result{}, domain.NewCollaboratorError("classifier", err)
	}

	// Предварительная проверка даёт внятный ответ про существующий id;
	// гарантией уникальности остаётся индекс в БД.
	existing, err := s.activities.GetActivityByURL(ctx, target)
	if err == nil {
		metrics.ObserveOutcome(metrics.SubmissionsTotal, "already_exists")
		return Result{Activity: existing, AlreadyExists: true}, nil
	}
	if !errors.Is(err, domain.ErrActivityNotFound) {
		return Result{}, fmt.Errorf("поиск события по URL: %w", err)
	}

	activity, err := s.buildActivity(target, parsed.Hostname(), page, classification)
	if err != nil {
		return Result{}, err
	}

	created, err := s.activities.CreateActivity(ctx, activity)
	if errors.Is(err, domain.ErrActivityExists) {
		// гонка двух одновременных заявок: индекс сработал, отдаём победителя
		existing, getErr := s.activities.GetActivityByURL(ctx, target)
		if getErr != nil {
			return Result{}, fmt.Errorf("повторный поиск события: %w", getErr)
		}
		metrics.ObserveOutcome(metrics.SubmissionsTotal, "already_exists")
		return Result{Activity: existing, AlreadyExists: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("сохранение события: %w", err)
	}
	metrics.ObserveOutcome(metrics.SubmissionsTotal, "created")
	s.log.Info().Int64("activity", created.ID).Str("url", target).Bool("valid", created.ValidationStatus).Msg("событие зарегистрировано")
	return Result{Activity: created}, nil
}

func (s *Service) buildActivity(target, host string, page domain.Page, classification domain.Classification) (domain.Activity, error) {
	title := strings.TrimSpace(classification.Metadata.Title)
	if title == "" {
		title = strings.TrimSpace(page.Title)
	}
	if title == "" {
		title = fallbackTitle
	}

	meta, err := json.Marshal(domain.ActivityMeta{
		RawTime:      classification.Metadata.Time,
		FullMetadata: classification.Metadata,
	})
	if err != nil {
		return domain.Activity{}, fmt.Errorf("сериализация метаданных: %w", err)
	}

	return domain.Activity{
		URL:              target,
		Title:            clipRunes(title, maxTitleRunes),
		Location:         classification.Metadata.Location,
		SourceDomain:     host,
		ValidationStatus: classification.Valid,
		ValidationTags:   classification.Tags,
		AISummary:        classification.Summary,
		MetaJSON:         meta,
	}, nil
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
