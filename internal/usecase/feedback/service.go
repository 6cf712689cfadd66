package feedback

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
)

// ErrNoEventSelected возвращается, если пользователь не выбрал событие;
// автоподбора нет, пользователя просят выбрать явно.
var ErrNoEventSelected = errors.New("событие не выбрано")

// Service реализует конвейер отзыва: привязка голоса к выбранному
// событию, транскрипция и сохранение.
type Service struct {
	sessions  domain.SessionStore
	feedbacks domain.FeedbackRepo
	analyzer  domain.SpeechAnalyzer
	log       zerolog.Logger
}

// RecordParams описывает входящее голосовое сообщение.
type RecordParams struct {
	UserID     int64
	UserHandle string
	// AudioPath — локально сохранённый файл; удаляется на всех путях.
	AudioPath string
	// FileID — ссылка платформы, сохраняется как audio_reference.
	FileID string
}

// NewService создаёт конвейер отзывов.
func NewService(sessions domain.SessionStore, feedbacks domain.FeedbackRepo, analyzer domain.SpeechAnalyzer, log zerolog.Logger) *Service {
	return &Service{sessions: sessions, feedbacks: feedbacks, analyzer: analyzer, log: log}
}

// Record обрабатывает один голосовой отзыв. Привязка одноразовая: выбор
// события читается и очищается атомарно, поэтому второе голосовое
// сообщение без нового выбора получит ErrNoEventSelected. Сбой анализатора
// прерывает конвейер без записи — синтетических транскрипций нет.
func (s *Service) Record(ctx context.Context, params RecordParams) (domain.Feedback, error) {
	defer func() {
		if params.AudioPath != "" {
			if err := os.Remove(params.AudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.log.Warn().Err(err).Str("path", params.AudioPath).Msg("не удалось удалить аудиофайл")
			}
		}
	}()

	eventID, ok := s.sessions.TakeSelectedEvent(params.UserID)
	if !ok {
		metrics.ObserveOutcome(metrics.FeedbacksTotal, "no_selection")
		return domain.Feedback{}, ErrNoEventSelected
	}

	audio, err := os.ReadFile(params.AudioPath)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("чтение аудио: %w", err)
	}

	hint := domain.AnalysisHint{
		UserID:       fmt.Sprintf("%d", params.UserID),
		ActivityHint: s.sessions.ActivityHint(params.UserID),
	}
	analysis, err := s.analyzer.Analyze(ctx, audio, hint)
	if err != nil {
		metrics.ObserveOutcome(metrics.FeedbacksTotal, "analyze_error")
		return domain.Feedback{}, domain.NewCollaboratorError("analyzer", err)
	}

	created, err := s.feedbacks.CreateFeedback(ctx, domain.Feedback{
		ActivityID:     eventID,
		UserID:         fmt.Sprintf("%d", params.UserID),
		UserHandle:     params.UserHandle,
		AudioReference: "telegram_file_id:" + params.FileID,
		Transcription:  analysis.Transcript,
		SentimentScore: analysis.Score,
		Keywords:       analysis.Keywords,
	})
	if errors.Is(err, domain.ErrDuplicateFeedback) {
		metrics.ObserveOutcome(metrics.FeedbacksTotal, "duplicate")
		return domain.Feedback{}, err
	}
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("сохранение отзыва: %w", err)
	}
	metrics.ObserveOutcome(metrics.FeedbacksTotal, "recorded")
	s.log.Info().Int64("activity", eventID).Int64("user", params.UserID).Msg("отзыв записан")
	return created, nil
}
