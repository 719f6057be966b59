package api

import (
	"hrproctor/hr"
	"hrproctor/models"
	"hrproctor/proctor"
)

// Message структура сообщения WebSocket и gRPC канала
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`

	// Операции прокторинга
	SessionID string `json:"sessionId,omitempty"`
	Audio     string `json:"audio,omitempty"` // base64 PCM/WAV/MP3/WebM

	// Ответы прокторинга
	Calibration *proctor.CalibrationStart   `json:"calibration,omitempty"`
	Sample      *proctor.SampleProgress     `json:"sample,omitempty"`
	Summary     *proctor.CalibrationSummary `json:"summary,omitempty"`
	Analysis    *proctor.Analysis           `json:"analysis,omitempty"`
	Status      *proctor.Status             `json:"status,omitempty"`
	Logs        *proctor.SessionLogs        `json:"logs,omitempty"`
	Stats       *proctor.SystemStats        `json:"stats,omitempty"`

	// Модели
	Models   []models.ModelState `json:"models,omitempty"`
	ModelID  string              `json:"modelId,omitempty"`
	Progress float64             `json:"progress,omitempty"`

	// HR профессии
	Role           string           `json:"role,omitempty"`
	ProfessionID   string           `json:"professionId,omitempty"`
	RealName       string           `json:"realName,omitempty"`
	Specialization string           `json:"specialization,omitempty"`
	Department     string           `json:"department,omitempty"`
	Comment        string           `json:"comment,omitempty"`
	Profession     *hr.Profession   `json:"profession,omitempty"`
	Professions    []hr.Profession  `json:"professions,omitempty"`

	Error string `json:"error,omitempty"`
}
