package ai

import (
	"context"
	"time"
)

// TranscriptSegment один сегмент распознанной речи
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult результат транскрипции одного аудиосэмпла.
// Success=false с заполненным Reason означает штатный отказ
// (слишком короткое аудио, нет речи), а не ошибку движка.
type TranscriptionResult struct {
	Success        bool                `json:"success"`
	Text           string              `json:"text"`
	Language       string              `json:"language,omitempty"`
	Confidence     float64             `json:"confidence"`
	ProcessingTime time.Duration       `json:"processing_time"`
	Segments       []TranscriptSegment `json:"segments,omitempty"`
	Reason         string              `json:"reason,omitempty"`
}

// TranscriptionEngine интерфейс движка транскрипции.
// Samples — mono float32 PCM на частоте движка (16 кГц).
type TranscriptionEngine interface {
	Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error)
	SampleRate() int
	Close() error
}
