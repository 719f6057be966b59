// Package proctor реализует систему аудио прокторинга с калибровкой
// голоса кандидата и проверкой говорящего в реальном времени
package proctor

// Config параметры системы прокторинга
type Config struct {
	SampleRate            int     `json:"sample_rate"`
	CalibrationDuration   int     `json:"calibration_duration"` // секунд
	MinCalibrationSamples int     `json:"min_calibration_samples"`
	SimilarityThreshold   float64 `json:"similarity_threshold"` // порог "свой/чужой"
	ChunkDuration         float64 `json:"chunk_duration"`       // секунд на чанк
	MFCCFeatures          int     `json:"mfcc_features"`
	MinSampleDuration     float64 `json:"min_sample_duration"` // секунд
	HistoryLimit          int     // записей истории анализа в логах
	ExportMP3             bool    // дублировать артефакты в MP3
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		SampleRate:            16000,
		CalibrationDuration:   10,
		MinCalibrationSamples: 5,
		SimilarityThreshold:   0.65,
		ChunkDuration:         2.0,
		MFCCFeatures:          13,
		MinSampleDuration:     1.0,
		HistoryLimit:          20,
		ExportMP3:             false,
	}
}
