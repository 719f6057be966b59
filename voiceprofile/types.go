// Package voiceprofile предоставляет построение голосового профиля
// кандидата из калибровочных образцов и проверку говорящего по профилю
package voiceprofile

import (
	"fmt"
	"time"
)

// Sample один калибровочный образец: вектор голосовых признаков
// и уверенность транскрипции этого образца
type Sample struct {
	Features   []float64 `json:"features"`
	Confidence float64   `json:"confidence"`
}

// VoiceProfile статистический профиль голоса кандидата.
// Все признаки хранятся в нормализованном пространстве профиля.
type VoiceProfile struct {
	MeanFeatures     []float64 `json:"mean_features"`      // центроид нормализованных образцов
	StdFeatures      []float64 `json:"std_features"`       // разброс по каждому признаку
	ScalerMean       []float64 `json:"scaler_mean"`        // параметры нормализации
	ScalerScale      []float64 `json:"scaler_scale"`       //
	NumSamples       int       `json:"num_samples"`        // использовано образцов
	GoodSamples      int       `json:"good_samples"`       // образцов с высокой уверенностью
	AvgIntraDistance float64   `json:"avg_intra_distance"` // средняя внутриклассовая дистанция
	QualityScore     float64   `json:"quality_score"`      // good_samples / num_samples
	FeatureDimension int       `json:"feature_dimension"`
	SessionID        string    `json:"session_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// VerifyResult результат проверки говорящего против профиля
type VerifyResult struct {
	IsCandidate        bool    `json:"is_candidate"`
	Confidence         float64 `json:"confidence"`           // схожесть с учётом boost
	RawSimilarity      float64 `json:"raw_similarity"`       // схожесть без boost, [0, 1]
	CosineDistance     float64 `json:"cosine_distance"`      // дистанция до центроида
	Threshold          float64 `json:"threshold"`            // применённый адаптивный порог
	IntraClassDistance float64 `json:"intra_class_distance"` // эталонная вариация профиля
	QualityScore       float64 `json:"quality_score"`
	Method             string  `json:"method"`
	Reason             string  `json:"reason,omitempty"` // причина автоматического отказа
}

// ErrInsufficientSamples недостаточно образцов для построения профиля
type ErrInsufficientSamples struct {
	Have int
	Need int
}

func (e *ErrInsufficientSamples) Error() string {
	return fmt.Sprintf("insufficient calibration samples: need at least %d, have %d", e.Need, e.Have)
}
