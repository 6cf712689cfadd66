package feedback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/session"
)

type stubFeedbackRepo struct {
	created   []domain.Feedback
	createErr error
}

func (s *stubFeedbackRepo) CreateFeedback(_ context.Context, fb domain.Feedback) (domain.Feedback, error) {
	if s.createErr != nil {
		return domain.Feedback{}, s.createErr
	}
	fb.ID = int64(len(s.created) + 1)
	s.created = append(s.created, fb)
	return fb, nil
}

func (s *stubFeedbackRepo) ListByActivity(context.Context, int64) ([]domain.Feedback, error) {
	return s.created, nil
}

type stubAnalyzer struct {
	analysis domain.SpeechAnalysis
	err      error
	gotHint  domain.AnalysisHint
	calls    int
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ []byte, hint domain.AnalysisHint) (domain.SpeechAnalysis, error) {
	s.calls++
	s.gotHint = hint
	return s.analysis, s.err
}

func stageAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.ogg")
	if err := os.WriteFile(path, []byte("OggS"), 0o644); err != nil {
		t.Fatalf("не удалось подготовить аудиофайл: %v", err)
	}
	return path
}

func TestRecordWithoutSelection(t *testing.T) {
	sessions := session.NewStore(0)
	repo := &stubFeedbackRepo{}
	analyzer := &stubAnalyzer{}
	service := NewService(sessions, repo, analyzer, zerolog.Nop())

	path := stageAudio(t)
	_, err := service.Record(context.Background(), RecordParams{UserID: 42, AudioPath: path, FileID: "f1"})
	if !errors.Is(err, ErrNoEventSelected) {
		t.Fatalf("ожидали ErrNoEventSelected, получили %v", err)
	}
	if analyzer.calls != 0 || len(repo.created) != 0 {
		t.Fatalf("без выбора события конвейер не должен запускаться")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("аудиофайл должен быть удалён")
	}
}

func TestRecordHappyPath(t *testing.T) {
	sessions := session.NewStore(0)
	sessions.SetSelectedEvent(42, 7)
	sessions.SetActivityHint(42, "Go Meetup")
	repo := &stubFeedbackRepo{}
	analyzer := &stubAnalyzer{analysis: domain.SpeechAnalysis{
		Transcript: "great event",
		Score:      0.9,
		Keywords:   []string{"great", "event"},
	}}
	service := NewService(sessions, repo, analyzer, zerolog.Nop())

	path := stageAudio(t)
	fb, err := service.Record(context.Background(), RecordParams{
		UserID:     42,
		UserHandle: "alice",
		AudioPath:  path,
		FileID:     "file123",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if fb.ActivityID != 7 || fb.UserID != "42" || fb.Transcription != "great event" {
		t.Fatalf("неожиданный отзыв: %+v", fb)
	}
	if fb.AudioReference != "telegram_file_id:file123" {
		t.Fatalf("ожидали ссылку на file_id, получили %q", fb.AudioReference)
	}
	if analyzer.gotHint.ActivityHint != "Go Meetup" || analyzer.gotHint.UserID != "42" {
		t.Fatalf("анализатор должен получать подсказку: %+v", analyzer.gotHint)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("аудиофайл должен быть удалён после записи")
	}
}

func TestRecordBindingIsSingleShot(t *testing.T) {
	sessions := session.NewStore(0)
	sessions.SetSelectedEvent(42, 7)
	repo := &stubFeedbackRepo{}
	analyzer := &stubAnalyzer{analysis: domain.SpeechAnalysis{Transcript: "ok"}}
	service := NewService(sessions, repo, analyzer, zerolog.Nop())

	if _, err := service.Record(context.Background(), RecordParams{UserID: 42, AudioPath: stageAudio(t), FileID: "f1"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_, err := service.Record(context.Background(), RecordParams{UserID: 42, AudioPath: stageAudio(t), FileID: "f2"})
	if !errors.Is(err, ErrNoEventSelected) {
		t.Fatalf("второе голосовое без нового выбора: ожидали ErrNoEventSelected, получили %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("ожидали одну запись, получили %d", len(repo.created))
	}
}

func TestRecordAnalyzerFailureIsLoud(t *testing.T) {
	sessions := session.NewStore(0)
	sessions.SetSelectedEvent(42, 7)
	repo := &stubFeedbackRepo{}
	analyzer := &stubAnalyzer{err: errors.New("whisper down")}
	service := NewService(sessions, repo, analyzer, zerolog.Nop())

	path := stageAudio(t)
	_, err := service.Record(context.Background(), RecordParams{UserID: 42, AudioPath: path, FileID: "f1"})
	if !domain.IsCollaboratorError(err) {
		t.Fatalf("ожидали ошибку коллаборатора, получили %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("синтетических транскрипций быть не должно")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("аудиофайл удаляется и при сбое")
	}
}

func TestRecordDuplicatePassesThrough(t *testing.T) {
	sessions := session.NewStore(0)
	sessions.SetSelectedEvent(42, 7)
	repo := &stubFeedbackRepo{createErr: domain.ErrDuplicateFeedback}
	analyzer := &stubAnalyzer{analysis: domain.SpeechAnalysis{Transcript: "ok"}}
	service := NewService(sessions, repo, analyzer, zerolog.Nop())

	_, err := service.Record(context.Background(), RecordParams{UserID: 42, AudioPath: stageAudio(t), FileID: "f1"})
	if !errors.Is(err, domain.ErrDuplicateFeedback) {
		t.Fatalf("ожидали ErrDuplicateFeedback, получили %v", err)
	}
}
