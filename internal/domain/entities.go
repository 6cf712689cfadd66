package domain

import "time"

// Activity описывает принятое и провалидированное событие сообщества.
type Activity struct {
	ID               int64
	URL              string
	Title            string
	Location         string
	SourceDomain     string
	ValidationStatus bool
	ValidationTags   map[string]bool
	AISummary        string
	MetaJSON         []byte
	CreatedAt        time.Time
}

// ActivityMeta хранится в колонке metadata как JSON.
type ActivityMeta struct {
	RawTime      string             `json:"raw_time"`
	FullMetadata ClassifierMetadata `json:"full_metadata"`
}

// Feedback описывает один голосовой отзыв пользователя о событии.
type Feedback struct {
	ID             int64
	ActivityID     int64
	UserID         string
	UserHandle     string
	AudioReference string
	Transcription  string
	SentimentScore float64
	Keywords       []string
	CreatedAt      time.Time
}

// Session хранит эфемерное состояние диалога одного пользователя.
// Нулевое значение означает "ничего не выбрано, тестовый режим выключен".
type Session struct {
	SelectedEventID   int64
	TestMode          bool
	PendingVoiceprint Voiceprint
	ActivityHint      string
}

// Classification содержит ответ контентного классификатора.
type Classification struct {
	Valid    bool
	Tags     map[string]bool
	Summary  string
	Metadata ClassifierMetadata
}

// ClassifierMetadata — извлечённые классификатором поля страницы.
type ClassifierMetadata struct {
	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`
	Time     string `json:"time,omitempty"`
}

// SpeechAnalysis содержит распознанный текст и оценку тональности.
type SpeechAnalysis struct {
	Transcript string
	Sentiment  string
	Score      float64
	Keywords   []string
	Confidence float64
}

// AnalysisHint передаётся анализатору речи как подсказка для сопоставления транскрипта.
type AnalysisHint struct {
	SessionID    string
	UserID       string
	ActivityHint string
}

// Voiceprint — числовой вектор голосовых характеристик говорящего.
type Voiceprint []float64

// VoiceMatch — результат сравнения двух голосовых отпечатков.
type VoiceMatch struct {
	Similarity float64
	Matched    bool
}

// FeedbackEntry — один отзыв в запросе к сервису суммаризации.
type FeedbackEntry struct {
	Transcription string   `json:"transcription"`
	Sentiment     float64  `json:"sentiment"`
	Keywords      []string `json:"keywords"`
}

// CommunityReport — сводный отчёт сообщества по событию.
type CommunityReport struct {
	SentimentReport string   `json:"sentiment_report"`
	WordCloud       []string `json:"word_cloud"`
	CommunityScore  int      `json:"community_score"`
}

// Page — результат выгрузки страницы события.
type Page struct {
	Title string
	Text  string
}
