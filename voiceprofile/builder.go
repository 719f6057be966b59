package voiceprofile

import (
	"fmt"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// BuilderConfig параметры построения профиля
type BuilderConfig struct {
	MinSamples     int     // минимум валидных образцов
	GoodConfidence float64 // порог уверенности "хорошего" образца
}

// DefaultBuilderConfig параметры по умолчанию
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MinSamples:     5,
		GoodConfidence: 0.7,
	}
}

// Builder строит голосовой профиль из калибровочных образцов
type Builder struct {
	config BuilderConfig
}

// NewBuilder создаёт builder профилей
func NewBuilder(config BuilderConfig) *Builder {
	return &Builder{config: config}
}

// Build строит профиль: нормализует образцы (z-score по каждому признаку),
// берёт центроид и считает среднюю внутриклассовую косинусную дистанцию.
// Образцы с пустыми признаками отбрасываются до проверки минимума.
func (b *Builder) Build(sessionID string, samples []Sample) (*VoiceProfile, error) {
	var valid []Sample
	for _, s := range samples {
		if len(s.Features) > 0 {
			valid = append(valid, s)
		}
	}

	if len(valid) < b.config.MinSamples {
		return nil, &ErrInsufficientSamples{Have: len(valid), Need: b.config.MinSamples}
	}

	dim := len(valid[0].Features)
	for _, s := range valid {
		if len(s.Features) != dim {
			return nil, fmt.Errorf("inconsistent feature dimensions: %d vs %d", len(s.Features), dim)
		}
	}

	goodSamples := 0
	for _, s := range valid {
		if s.Confidence > b.config.GoodConfidence {
			goodSamples++
		}
	}

	scalerMean, scalerScale := fitScaler(valid, dim)

	// Нормализованные образцы
	normalized := make([][]float64, len(valid))
	for i, s := range valid {
		normalized[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			normalized[i][j] = (s.Features[j] - scalerMean[j]) / scalerScale[j]
		}
	}

	// Центроид и разброс в нормализованном пространстве
	meanProfile := make([]float64, dim)
	stdProfile := make([]float64, dim)
	col := make([]float64, len(normalized))
	for j := 0; j < dim; j++ {
		for i := range normalized {
			col[i] = normalized[i][j]
		}
		m := stat.Mean(col, nil)
		meanProfile[j] = m
		variance := stat.MomentAbout(2, col, m, nil)
		if variance < 0 {
			variance = 0
		}
		stdProfile[j] = math.Sqrt(variance)
	}

	// Внутриклассовая вариация: средняя дистанция образцов до центроида.
	// NaN (нулевые векторы) пропускаются; без валидных дистанций берём 0.3.
	var distances []float64
	for i := range normalized {
		d := CosineDistance(normalized[i], meanProfile)
		if !math.IsNaN(d) {
			distances = append(distances, d)
		}
	}
	avgIntraDistance := 0.3
	if len(distances) > 0 {
		avgIntraDistance = stat.Mean(distances, nil)
	}

	profile := &VoiceProfile{
		MeanFeatures:     meanProfile,
		StdFeatures:      stdProfile,
		ScalerMean:       scalerMean,
		ScalerScale:      scalerScale,
		NumSamples:       len(valid),
		GoodSamples:      goodSamples,
		AvgIntraDistance: avgIntraDistance,
		QualityScore:     float64(goodSamples) / float64(len(valid)),
		FeatureDimension: dim,
		SessionID:        sessionID,
		CreatedAt:        time.Now(),
	}

	log.Printf("[VoiceProfile] built: samples=%d, good=%d, intra_distance=%.3f, quality=%.2f",
		profile.NumSamples, profile.GoodSamples, profile.AvgIntraDistance, profile.QualityScore)
	return profile, nil
}

// fitScaler вычисляет mean и scale по каждому признаку.
// Нулевой разброс заменяется единицей, чтобы деление было безопасным.
func fitScaler(samples []Sample, dim int) ([]float64, []float64) {
	mean := make([]float64, dim)
	scale := make([]float64, dim)
	col := make([]float64, len(samples))

	for j := 0; j < dim; j++ {
		for i, s := range samples {
			col[i] = s.Features[j]
		}
		m := stat.Mean(col, nil)
		mean[j] = m
		variance := stat.MomentAbout(2, col, m, nil)
		if variance < 0 {
			variance = 0
		}
		sd := math.Sqrt(variance)
		if sd == 0 {
			sd = 1.0
		}
		scale[j] = sd
	}
	return mean, scale
}
