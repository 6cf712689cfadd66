package voiceprint

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
)

// Service реализует двухшаговый протокол проверки голоса: первый захват
// сохраняется как отложенный отпечаток, второй сравнивается с ним.
type Service struct {
	sessions    domain.SessionStore
	voiceprints domain.VoiceprintService
	log         zerolog.Logger
}

// CaptureResult — итог обработки одной голосовой записи в тестовом режиме.
type CaptureResult struct {
	// AwaitingSecond — захвачен первый отпечаток, ждём вторую запись.
	AwaitingSecond bool
	Similarity     float64
	Matched        bool
}

// NewService создаёт протокол проверки голоса.
func NewService(sessions domain.SessionStore, voiceprints domain.VoiceprintService, log zerolog.Logger) *Service {
	return &Service{sessions: sessions, voiceprints: voiceprints, log: log}
}

// Start включает тестовый режим, сбрасывая прежний отложенный отпечаток.
func (s *Service) Start(userID int64) {
	s.sessions.TakePendingVoiceprint(userID)
	s.sessions.EnterTestMode(userID)
}

// Cancel выходит из тестового режима и чистит отложенное состояние.
func (s *Service) Cancel(userID int64) {
	s.sessions.TakePendingVoiceprint(userID)
	s.sessions.ExitTestMode(userID)
}

// InTestMode сообщает, ждёт ли протокол запись от пользователя.
func (s *Service) InTestMode(userID int64) bool {
	return s.sessions.InTestMode(userID)
}

// Capture обрабатывает запись. Сбой внешнего сервиса не продвигает
// протокол: состояние ожидания остаётся прежним.
func (s *Service) Capture(ctx context.Context, userID int64, audio []byte) (CaptureResult, error) {
	vp, err := s.voiceprints.Extract(ctx, audio)
	if err != nil {
		return CaptureResult{}, domain.NewCollaboratorError("voiceprint", err)
	}

	first, ok := s.sessions.TakePendingVoiceprint(userID)
	if !ok {
		s.sessions.SetPendingVoiceprint(userID, vp)
		return CaptureResult{AwaitingSecond: true}, nil
	}

	match, err := s.voiceprints.Compare(ctx, first, vp)
	if err != nil {
		// остаёмся в ожидании второй записи с прежним первым отпечатком
		s.sessions.SetPendingVoiceprint(userID, first)
		return CaptureResult{}, domain.NewCollaboratorError("voiceprint", err)
	}

	s.sessions.ExitTestMode(userID)
	metrics.VoiceTestsTotal.Inc()
	s.log.Info().Int64("user", userID).Float64("similarity", match.Similarity).Bool("matched", match.Matched).Msg("сравнение голосов завершено")
	return CaptureResult{Similarity: match.Similarity, Matched: match.Matched}, nil
}
