package voiceprofile

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
)

// VerifierConfig параметры проверки говорящего
type VerifierConfig struct {
	BaseThreshold        float64 // базовый порог "свой/чужой"
	IntraClassMultiplier float64 // допустимое превышение внутриклассовой вариации
	ConfidenceBoost      float64 // прибавка при дистанции в пределах вариации
}

// DefaultVerifierConfig параметры по умолчанию
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		BaseThreshold:        0.65,
		IntraClassMultiplier: 1.5,
		ConfidenceBoost:      0.1,
	}
}

// Verifier проверяет, принадлежит ли голос кандидату из профиля
type Verifier struct {
	config VerifierConfig
}

// NewVerifier создаёт verifier
func NewVerifier(config VerifierConfig) *Verifier {
	return &Verifier{config: config}
}

// Verify нормализует признаки scaler'ом профиля и сравнивает с центроидом.
// Порог адаптивный: base * (0.8 + 0.2 * quality_score). Если дистанция
// в пределах полутора внутриклассовых вариаций, схожесть получает boost.
func (v *Verifier) Verify(profile *VoiceProfile, features []float64) (*VerifyResult, error) {
	if profile == nil {
		return nil, fmt.Errorf("no voice profile")
	}
	// Несовместимые признаки это не ошибка операции, а автоматический
	// отказ: голос не может совпасть с профилем
	if len(features) == 0 {
		return rejection(profile, "признаки голоса не извлечены"), nil
	}
	if len(features) != len(profile.MeanFeatures) {
		return rejection(profile, fmt.Sprintf(
			"размерность признаков не совпадает с профилем: %d вместо %d",
			len(features), len(profile.MeanFeatures))), nil
	}

	normalized := make([]float64, len(features))
	for i := range features {
		normalized[i] = (features[i] - profile.ScalerMean[i]) / profile.ScalerScale[i]
	}

	cosDistance := CosineDistance(normalized, profile.MeanFeatures)
	if math.IsNaN(cosDistance) {
		cosDistance = 1.0
	}

	similarity := 1.0 - cosDistance
	similarity = math.Max(0.0, math.Min(1.0, similarity))

	adaptiveThreshold := v.config.BaseThreshold * (0.8 + 0.2*profile.QualityScore)

	boost := 0.0
	if cosDistance <= profile.AvgIntraDistance*v.config.IntraClassMultiplier {
		boost = v.config.ConfidenceBoost
	}

	finalSimilarity := similarity + boost
	isCandidate := finalSimilarity >= adaptiveThreshold

	result := &VerifyResult{
		IsCandidate:        isCandidate,
		Confidence:         finalSimilarity,
		RawSimilarity:      similarity,
		CosineDistance:     cosDistance,
		Threshold:          adaptiveThreshold,
		IntraClassDistance: profile.AvgIntraDistance,
		QualityScore:       profile.QualityScore,
		Method:             "cosine_similarity_adaptive",
	}

	log.Printf("[VoiceProfile] verify: candidate=%v, confidence=%.3f, distance=%.3f, threshold=%.3f",
		result.IsCandidate, result.Confidence, result.CosineDistance, result.Threshold)
	return result, nil
}

// rejection вердикт-отказ с нулевой уверенностью
func rejection(profile *VoiceProfile, reason string) *VerifyResult {
	log.Printf("[VoiceProfile] verify rejected: %s", reason)
	return &VerifyResult{
		IsCandidate:        false,
		Confidence:         0,
		CosineDistance:     1.0,
		IntraClassDistance: profile.AvgIntraDistance,
		QualityScore:       profile.QualityScore,
		Method:             "cosine_similarity_adaptive",
		Reason:             reason,
	}
}

// CosineDistance косинусная дистанция между векторами: 1 - similarity.
// Для нулевого вектора возвращает NaN, как scipy.spatial.distance.cosine.
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return math.NaN()
	}

	return 1.0 - floats.Dot(a, b)/(normA*normB)
}
