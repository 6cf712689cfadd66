package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/adapters/telegram"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/feedback"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/report"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/submission"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/voiceprint"
)

const listLimit = 10

// Handler обслуживает вебхук бота и воплощает машину состояний диалога:
// команды, выбор события числом, голосовые сообщения.
type Handler struct {
	bot          *tgbotapi.BotAPI
	log          zerolog.Logger
	submissionUC *submission.Service
	feedbackUC   *feedback.Service
	reportUC     *report.Service
	voiceUC      *voiceprint.Service
	sessions     domain.SessionStore
	activities   domain.ActivityRepo
	audioDir     string

	// сообщения одного пользователя обрабатываются строго по одному,
	// пользователи друг друга не блокируют
	mu       sync.Mutex
	inflight map[int64]*sync.Mutex
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, submissionUC *submission.Service, feedbackUC *feedback.Service, reportUC *report.Service, voiceUC *voiceprint.Service, sessions domain.SessionStore, activities domain.ActivityRepo, audioDir string) *Handler {
	return &Handler{
		bot:          bot,
		log:          log,
		submissionUC: submissionUC,
		feedbackUC:   feedbackUC,
		reportUC:     reportUC,
		voiceUC:      voiceUC,
		sessions:     sessions,
		activities:   activities,
		audioDir:     audioDir,
		inflight:     make(map[int64]*sync.Mutex),
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	h.handleMessage(ctx, upd.Message)
}

func (h *Handler) userLock(userID int64) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.inflight[userID]
	if !ok {
		lock = &sync.Mutex{}
		h.inflight[userID] = lock
	}
	return lock
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	lock := h.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if msg.Voice != nil || msg.Audio != nil {
		h.handleVoice(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, h.buildStartMessage())
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage())
	case strings.HasPrefix(text, "/submit"):
		rawURL := strings.TrimSpace(strings.TrimPrefix(text, "/submit"))
		h.handleSubmit(ctx, msg.Chat.ID, rawURL)
	case strings.HasPrefix(text, "/report"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/report"))
		h.handleReport(ctx, msg.Chat.ID, payload)
	case strings.HasPrefix(text, "/voicetest_cancel"):
		h.voiceUC.Cancel(userID)
		h.reply(msg.Chat.ID, "Voice test cancelled.")
	case strings.HasPrefix(text, "/voicetest"):
		h.voiceUC.Start(userID)
		h.reply(msg.Chat.ID, "🎙️ Voice test started. Send your first voice message.")
	case h.voiceUC.InTestMode(userID):
		// в тестовом режиме текст не выбирает события
		h.reply(msg.Chat.ID, "🎙️ Voice test in progress. Send a voice message, or /voicetest_cancel to abort.")
	case text == "/list" || strings.EqualFold(text, "event") || text == "活动":
		h.handleList(ctx, msg.Chat.ID)
	case isNumeric(text):
		h.handleSelect(ctx, msg.Chat.ID, userID, text)
	default:
		h.reply(msg.Chat.ID, "Unknown command. Use /help")
	}
}

func (h *Handler) handleSubmit(ctx context.Context, chatID int64, rawURL string) {
	if rawURL == "" {
		h.reply(chatID, "usage: /submit <url>")
		return
	}
	statusID := h.sendStatus(chatID, fmt.Sprintf("🔍 Analyzing URL: %s ...", rawURL))

	result, err := h.submissionUC.Submit(ctx, rawURL)
	switch {
	case errors.Is(err, submission.ErrInvalidURL):
		h.editStatus(chatID, statusID, "❌ Invalid URL format.")
		return
	case domain.IsCollaboratorError(err):
		h.editStatus(chatID, statusID, fmt.Sprintf("❌ Failed to process URL: %v", err))
		return
	case err != nil:
		h.log.Error().Err(err).Str("url", rawURL).Msg("не удалось обработать заявку")
		h.editStatus(chatID, statusID, "❌ Internal error, try again later.")
		return
	}

	if result.AlreadyExists {
		h.editStatus(chatID, statusID, fmt.Sprintf("⚠️ Event already exists! (ID: %d)", result.Activity.ID))
		return
	}
	h.editStatus(chatID, statusID, renderActivityCard(result.Activity))
}

func (h *Handler) handleList(ctx context.Context, chatID int64) {
	activities, err := h.activities.ListValidated(ctx, listLimit)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить список событий")
		h.reply(chatID, "❌ Error fetching events, try again later.")
		return
	}
	if len(activities) == 0 {
		h.reply(chatID, "📭 No upcoming events found.")
		return
	}
	var b strings.Builder
	b.WriteString("📅 Upcoming Events\n\n")
	for _, a := range activities {
		b.WriteString(fmt.Sprintf("%d. %s\n", a.ID, a.Title))
		if a.Location != "" {
			b.WriteString(fmt.Sprintf("📍 %s\n", a.Location))
		}
		if a.AISummary != "" {
			b.WriteString(a.AISummary + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("👇 Reply with the event ID number to give feedback.")
	h.reply(chatID, b.String())
}

func (h *Handler) handleSelect(ctx context.Context, chatID, userID int64, text string) {
	eventID, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		h.reply(chatID, "❌ Invalid event ID.")
		return
	}
	activity, err := h.activities.GetActivity(ctx, eventID)
	if errors.Is(err, domain.ErrActivityNotFound) {
		// выбор не меняется: прежняя сессия остаётся как была
		h.reply(chatID, "❌ Invalid event ID. Type 'Event' to list events.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось получить событие")
		h.reply(chatID, "❌ Error looking up event, try again later.")
		return
	}
	h.sessions.SetSelectedEvent(userID, activity.ID)
	h.sessions.SetActivityHint(userID, activity.Title)
	h.reply(chatID, fmt.Sprintf("✅ Selected: %s\n\n🎙️ Please send a voice message to share your feedback.", activity.Title))
}

func (h *Handler) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	fileID := voiceFileID(msg)
	if fileID == "" {
		return
	}

	// тестовый режим перехватывает голосовые сообщения
	if h.voiceUC.InTestMode(userID) {
		h.handleVoiceTest(ctx, msg.Chat.ID, userID, fileID)
		return
	}

	statusID := h.sendStatus(msg.Chat.ID, "🎙️ Receiving audio...")
	path, err := h.downloadAudio(ctx, userID, fileID)
	if err != nil {
		h.log.Error().Err(err).Str("file", fileID).Msg("не удалось скачать аудио")
		h.editStatus(msg.Chat.ID, statusID, "❌ Failed to receive audio, try again.")
		return
	}
	h.editStatus(msg.Chat.ID, statusID, "🧠 AI analyzing...")

	fb, err := h.feedbackUC.Record(ctx, feedback.RecordParams{
		UserID:     userID,
		UserHandle: msg.From.UserName,
		AudioPath:  path,
		FileID:     fileID,
	})
	switch {
	case errors.Is(err, feedback.ErrNoEventSelected):
		h.editStatus(msg.Chat.ID, statusID, "⚠️ Please select an event number first. Type 'Event' to list.")
		return
	case errors.Is(err, domain.ErrDuplicateFeedback):
		h.editStatus(msg.Chat.ID, statusID, "⚠️ You already left feedback for this event.")
		return
	case domain.IsCollaboratorError(err):
		h.editStatus(msg.Chat.ID, statusID, fmt.Sprintf("❌ AI analysis failed: %v", err))
		return
	case err != nil:
		h.log.Error().Err(err).Int64("user", userID).Msg("не удалось сохранить отзыв")
		h.editStatus(msg.Chat.ID, statusID, "❌ Failed to save feedback, try again later.")
		return
	}
	h.editStatus(msg.Chat.ID, statusID, renderFeedbackCard(fb))
}

func (h *Handler) handleVoiceTest(ctx context.Context, chatID, userID int64, fileID string) {
	statusID := h.sendStatus(chatID, "🎙️ Capturing voiceprint...")
	path, err := h.downloadAudio(ctx, userID, fileID)
	if err != nil {
		h.log.Error().Err(err).Str("file", fileID).Msg("не удалось скачать аудио")
		h.editStatus(chatID, statusID, "❌ Failed to receive audio, try again.")
		return
	}
	defer func() { _ = os.Remove(path) }()

	audio, err := os.ReadFile(path)
	if err != nil {
		h.editStatus(chatID, statusID, "❌ Failed to read audio, try again.")
		return
	}

	result, err := h.voiceUC.Capture(ctx, userID, audio)
	if err != nil {
		h.editStatus(chatID, statusID, fmt.Sprintf("❌ Voiceprint service failed: %v\nSend a voice message to try again, or /voicetest_cancel.", err))
		return
	}
	if result.AwaitingSecond {
		h.editStatus(chatID, statusID, "✅ First recording captured. Now send a second voice message.")
		return
	}
	verdict := "❌ Voices do NOT match."
	if result.Matched {
		verdict = "✅ Voices match!"
	}
	h.editStatus(chatID, statusID, fmt.Sprintf("%s\nSimilarity: %.2f", verdict, result.Similarity))
}

func (h *Handler) handleReport(ctx context.Context, chatID int64, payload string) {
	eventID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || eventID <= 0 {
		h.reply(chatID, "usage: /report <event id>")
		return
	}
	rep, err := h.reportUC.Build(ctx, eventID)
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		h.reply(chatID, "❌ Event not found.")
		return
	case errors.Is(err, report.ErrNoFeedback):
		h.reply(chatID, "📭 No feedback yet for this event.")
		return
	case domain.IsCollaboratorError(err):
		h.reply(chatID, fmt.Sprintf("❌ Report generation failed: %v", err))
		return
	case err != nil:
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось построить отчёт")
		h.reply(chatID, "❌ Failed to build report, try again later.")
		return
	}
	h.reply(chatID, renderReport(rep))
}

// downloadAudio сохраняет голосовое сообщение во временный файл.
func (h *Handler) downloadAudio(ctx context.Context, userID int64, fileID string) (string, error) {
	start := time.Now()
	file, err := h.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	metrics.ObserveNetworkRequest("telegram_bot", "get_file", strconv.FormatInt(userID, 10), start, err)
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(h.bot.Token), nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	start = time.Now()
	resp, err := http.DefaultClient.Do(req)
	metrics.ObserveNetworkRequest("telegram_bot", "download_file", strconv.FormatInt(userID, 10), start, err)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(h.audioDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(h.audioDir, fmt.Sprintf("%d_%s.ogg", userID, uuid.NewString()))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return path, nil
}

func voiceFileID(msg *tgbotapi.Message) string {
	if msg.Voice != nil {
		return msg.Voice.FileID
	}
	if msg.Audio != nil {
		return msg.Audio.FileID
	}
	return ""
}

func isNumeric(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func renderActivityCard(activity domain.Activity) string {
	emoji := "✅"
	status := "Approved"
	if !activity.ValidationStatus {
		emoji = "❌"
		status = "Rejected"
	}
	tags := make([]string, 0, len(activity.ValidationTags))
	for tag, ok := range activity.ValidationTags {
		if ok {
			tags = append(tags, tag)
		}
	}
	lines := []string{
		fmt.Sprintf("%s Event Processed", emoji),
		fmt.Sprintf("ID: %d", activity.ID),
		fmt.Sprintf("Title: %s", activity.Title),
		fmt.Sprintf("Tags: %s", strings.Join(tags, ", ")),
		fmt.Sprintf("Status: %s", status),
		"",
		fmt.Sprintf("Summary: %s", activity.AISummary),
	}
	return strings.Join(lines, "\n")
}

func renderFeedbackCard(fb domain.Feedback) string {
	return strings.Join([]string{
		"✅ Feedback Recorded!",
		"",
		fmt.Sprintf("💬 %q", clipRunes(fb.Transcription, 100)),
		fmt.Sprintf("😊 Sentiment: %.2f", fb.SentimentScore),
		fmt.Sprintf("🏷️ Keywords: %s", strings.Join(fb.Keywords, ", ")),
	}, "\n")
}

func renderReport(rep report.Report) string {
	return strings.Join([]string{
		fmt.Sprintf("📊 Community Report: %s", rep.EventTitle),
		"",
		fmt.Sprintf("⭐ Community score: %d/100", rep.CommunityScore),
		fmt.Sprintf("👥 Participants: %d", rep.Participants),
		"",
		rep.SentimentReport,
		"",
		fmt.Sprintf("☁️ %s", strings.Join(rep.WordCloud, ", ")),
	}, "\n")
}

func clipRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func (h *Handler) buildStartMessage() string {
	return strings.Join([]string{
		"👋 Welcome to EchoRank Bot!",
		"",
		"I am your decentralized event assistant.",
		"",
		"Submit Mode:",
		"/submit <url> — add an event",
		"",
		"Discover Mode:",
		"Type 'Event' or '活动' to find things to do.",
		"Reply with an event ID, then send a voice message to leave feedback.",
	}, "\n")
}

func (h *Handler) buildHelpMessage() string {
	return strings.Join([]string{
		"📖 Commands:",
		"",
		"• /submit <url> — submit an event page for validation.",
		"• /list (or 'Event' / '活动') — list recent validated events.",
		"• <number> — select an event to give feedback on.",
		"• 🎙️ voice message — record feedback for the selected event.",
		"• /report <id> — community report for an event.",
		"• /voicetest — check whether two recordings are the same voice.",
		"• /voicetest_cancel — abort the voice test.",
	}, "\n")
}

func (h *Handler) reply(chatID int64, text string) {
	for _, part := range telegram.SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

// sendStatus отправляет промежуточное сообщение и возвращает его id для правок.
func (h *Handler) sendStatus(chatID int64, text string) int {
	start := time.Now()
	sent, err := h.bot.Send(tgbotapi.NewMessage(chatID, text))
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Error().Err(err).Msg("не удалось отправить статус")
		return 0
	}
	return sent.MessageID
}

func (h *Handler) editStatus(chatID int64, messageID int, text string) {
	if messageID == 0 {
		h.reply(chatID, text)
		return
	}
	start := time.Now()
	_, err := h.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Error().Err(err).Msg("не удалось обновить статус")
	}
}
