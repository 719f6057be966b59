package proctor

import (
	"fmt"
	"time"

	"hrproctor/ai"
	"hrproctor/voiceprofile"
)

// State состояние сессии прокторинга
type State string

const (
	StateUncalibrated State = "uncalibrated"
	StateCalibrating  State = "calibrating"
	StateCalibrated   State = "calibrated"
)

// FailureKind категория отказа операции
type FailureKind string

const (
	FailureDecode               FailureKind = "decode_failure"
	FailureFeatureExtraction    FailureKind = "feature_extraction_failure"
	FailureTranscription        FailureKind = "transcription_failure"
	FailureInsufficientSamples  FailureKind = "insufficient_calibration_data"
	FailureInvalidState         FailureKind = "invalid_state"
	FailureSessionNotFound      FailureKind = "session_not_found"
	FailureSampleTooShort       FailureKind = "sample_too_short"
	FailureEngineUnavailable    FailureKind = "engine_unavailable"
	FailureVerification         FailureKind = "verification_failure"
)

// OpError отказ операции с категорией
type OpError struct {
	Kind FailureKind
	Msg  string
	Err  error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(kind FailureKind, msg string, err error) *OpError {
	return &OpError{Kind: kind, Msg: msg, Err: err}
}

// CalibrationStart результат начала калибровки
type CalibrationStart struct {
	SessionID         string   `json:"session_id"`
	Message           string   `json:"message"`
	CalibrationPhrase string   `json:"calibration_phrase"`
	Duration          int      `json:"duration"`
	MinSamples        int      `json:"min_samples"`
	Instructions      []string `json:"instructions"`
}

// SampleProgress результат добавления калибровочного образца
type SampleProgress struct {
	SamplesCollected     int     `json:"samples_collected"`
	MinRequired          int     `json:"min_required"`
	ProgressPercent      int     `json:"progress_percent"`
	CanFinishCalibration bool    `json:"can_finish_calibration"`
	Transcription        string  `json:"transcription"`
	AudioLength          float64 `json:"audio_length"`
	Confidence           float64 `json:"confidence"`
	ProcessingTime       float64 `json:"processing_time"`
}

// CalibrationSummary итог завершённой калибровки
type CalibrationSummary struct {
	Message       string    `json:"message"`
	SamplesUsed   int       `json:"samples_used"`
	GoodSamples   int       `json:"good_quality_samples"`
	FeatureDim    int       `json:"feature_dimension"`
	QualityScore  float64   `json:"quality_score"`
	AvgConfidence float64   `json:"avg_confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

// Analysis результат анализа речи: транскрипция плюс проверка говорящего
type Analysis struct {
	Timestamp     time.Time                  `json:"timestamp"`
	Transcription *ai.TranscriptionResult    `json:"transcription"`
	Speaker       *voiceprofile.VerifyResult `json:"speaker_identification"`
	AudioLength   float64                    `json:"audio_length"`
	SessionID     string                     `json:"session_id"`
	AnalysisID    int                        `json:"analysis_id"`
}

// Status текущее состояние сессии
type Status struct {
	SessionID           string  `json:"session_id"`
	State               State   `json:"state"`
	CalibrationSamples  int     `json:"calibration_samples"`
	AnalysisCount       int     `json:"analysis_count"`
	VoiceProfileQuality float64 `json:"voice_profile_quality"`
}

// SessionLogs журнал сессии: профиль, файлы и хвост истории анализа
type SessionLogs struct {
	SessionID        string                     `json:"session_id"`
	VoiceProfile     *voiceprofile.VoiceProfile `json:"voice_profile,omitempty"`
	CalibrationFiles []string                   `json:"calibration_files"`
	AnalysisFiles    []string                   `json:"analysis_files"`
	TotalAudioFiles  int                        `json:"total_audio_files"`
	AnalysisHistory  []Analysis                 `json:"analysis_history"`
	State            State                      `json:"state"`
	TotalSamples     int                        `json:"total_samples"`
}

// SystemStats статистика всей системы
type SystemStats struct {
	EngineLoaded bool   `json:"engine_loaded"`
	SessionCount int    `json:"session_count"`
	Config       Config `json:"config"`
}
