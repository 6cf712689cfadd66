package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
)

const defaultBaseURL = "http://127.0.0.1:8001"

// Client обращается к AI-сервису: валидация контента, анализ речи,
// голосовые отпечатки и суммаризация отчётов.
type Client struct {
	http    *http.Client
	baseURL string
}

var _ domain.ContentClassifier = (*Client)(nil)
var _ domain.SpeechAnalyzer = (*Client)(nil)
var _ domain.VoiceprintService = (*Client)(nil)
var _ domain.ReportSummarizer = (*Client)(nil)

// NewClient создаёт клиента AI-сервиса.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout + 5*time.Second},
		baseURL: baseURL,
	}
}

type classifyRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type classifyResponse struct {
	Valid    bool                      `json:"valid"`
	Tags     map[string]bool           `json:"tags"`
	Summary  string                    `json:"summary"`
	Metadata domain.ClassifierMetadata `json:"metadata"`
}

// Classify отправляет заголовок и текст страницы на валидацию.
func (c *Client) Classify(ctx context.Context, title, body string) (domain.Classification, error) {
	var resp classifyResponse
	if err := c.postJSON(ctx, "/validate", classifyRequest{Title: title, Body: body}, &resp); err != nil {
		return domain.Classification{}, err
	}
	if resp.Tags == nil && resp.Summary == "" {
		return domain.Classification{}, fmt.Errorf("ai: validate: пустой ответ")
	}
	return domain.Classification{
		Valid:    resp.Valid,
		Tags:     resp.Tags,
		Summary:  resp.Summary,
		Metadata: resp.Metadata,
	}, nil
}

type analyzeResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Transcript string   `json:"transcript"`
		Emotion    string   `json:"emotion"`
		Sentiment  string   `json:"sentiment"`
		Intensity  *float64 `json:"intensity"`
		Score      *float64 `json:"score"`
		Keywords   []string `json:"keywords"`
		Confidence float64  `json:"confidence"`
	} `json:"result"`
}

// Analyze транскрибирует аудио и возвращает оценку тональности.
// Сервис отдаёт либо пару emotion/intensity, либо sentiment/score; поля
// нормализуются здесь, чтобы конвейер видел один формат.
func (c *Client) Analyze(ctx context.Context, audio []byte, hint domain.AnalysisHint) (domain.SpeechAnalysis, error) {
	fields := map[string]string{}
	if hint.SessionID != "" {
		fields["session_id"] = hint.SessionID
	}
	if hint.UserID != "" {
		fields["user_id"] = hint.UserID
	}
	if hint.ActivityHint != "" {
		fields["activity_hint"] = hint.ActivityHint
	}

	var resp analyzeResponse
	if err := c.postAudio(ctx, "/analyze", audio, fields, &resp); err != nil {
		return domain.SpeechAnalysis{}, err
	}
	if !resp.Success && resp.Result.Transcript == "" {
		return domain.SpeechAnalysis{}, fmt.Errorf("ai: analyze: сервис сообщил о неуспехе")
	}

	sentiment := resp.Result.Sentiment
	if sentiment == "" {
		sentiment = resp.Result.Emotion
	}
	score := 0.5
	if resp.Result.Score != nil {
		score = *resp.Result.Score
	} else if resp.Result.Intensity != nil {
		score = *resp.Result.Intensity
	}
	return domain.SpeechAnalysis{
		Transcript: resp.Result.Transcript,
		Sentiment:  sentiment,
		Score:      score,
		Keywords:   resp.Result.Keywords,
		Confidence: resp.Result.Confidence,
	}, nil
}

type extractResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Extract получает голосовой отпечаток из аудио.
func (c *Client) Extract(ctx context.Context, audio []byte) (domain.Voiceprint, error) {
	var resp extractResponse
	if err := c.postAudio(ctx, "/voiceprint/extract", audio, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ai: voiceprint: пустой эмбеддинг")
	}
	return domain.Voiceprint(resp.Embedding), nil
}

type compareRequest struct {
	Embedding1 []float64 `json:"embedding1"`
	Embedding2 []float64 `json:"embedding2"`
}

type compareResponse struct {
	Similarity float64 `json:"similarity"`
	Matched    bool    `json:"matched"`
}

// Compare сравнивает два голосовых отпечатка.
func (c *Client) Compare(ctx context.Context, first, second domain.Voiceprint) (domain.VoiceMatch, error) {
	var resp compareResponse
	req := compareRequest{Embedding1: first, Embedding2: second}
	if err := c.postJSON(ctx, "/voiceprint/compare", req, &resp); err != nil {
		return domain.VoiceMatch{}, err
	}
	return domain.VoiceMatch{Similarity: resp.Similarity, Matched: resp.Matched}, nil
}

type summarizeRequest struct {
	EventTitle string                 `json:"event_title"`
	Feedbacks  []domain.FeedbackEntry `json:"feedbacks"`
}

// Summarize строит сводный отчёт по отзывам о событии.
func (c *Client) Summarize(ctx context.Context, eventTitle string, entries []domain.FeedbackEntry) (domain.CommunityReport, error) {
	var resp domain.CommunityReport
	req := summarizeRequest{EventTitle: eventTitle, Feedbacks: entries}
	if err := c.postJSON(ctx, "/report", req, &resp); err != nil {
		return domain.CommunityReport{}, err
	}
	if resp.SentimentReport == "" && len(resp.WordCloud) == 0 {
		return domain.CommunityReport{}, fmt.Errorf("ai: report: неожиданная форма ответа")
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) postAudio(ctx context.Context, path string, audio []byte, fields map[string]string, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "voice.ogg")
	if err != nil {
		return fmt.Errorf("ai: build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("ai: write audio: %w", err)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("ai: write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("ai: close form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, operation string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("ai", operation, c.baseURL, start, err)
		return fmt.Errorf("ai: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("ai", operation, c.baseURL, start, err)
		return fmt.Errorf("ai: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		err = fmt.Errorf("ai: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body[:min(len(body), 256)])))
		metrics.ObserveNetworkRequest("ai", operation, c.baseURL, start, err)
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.ObserveNetworkRequest("ai", operation, c.baseURL, start, err)
		return fmt.Errorf("ai: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("ai", operation, c.baseURL, start, nil)
	return nil
}
