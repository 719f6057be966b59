package voiceprofile

import (
	"math"
	"math/rand"
	"testing"
)

// fixedProfile детерминированный профиль: scaler тождественный,
// центроид задаётся явно
func fixedProfile(centroid []float64) *VoiceProfile {
	dim := len(centroid)
	mean := make([]float64, dim)
	scale := make([]float64, dim)
	for i := range scale {
		scale[i] = 1.0
	}
	return &VoiceProfile{
		MeanFeatures:     centroid,
		StdFeatures:      make([]float64, dim),
		ScalerMean:       mean,
		ScalerScale:      scale,
		NumSamples:       8,
		GoodSamples:      8,
		AvgIntraDistance: 0.2,
		QualityScore:     1.0,
		FeatureDimension: dim,
		SessionID:        "verify-test",
	}
}

func TestVerifier_AcceptsOwnVoice(t *testing.T) {
	centroid := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	profile := fixedProfile(centroid)
	v := NewVerifier(DefaultVerifierConfig())

	// Вектор, совпадающий с центроидом: дистанция 0, схожесть 1
	result, err := v.Verify(profile, append([]float64(nil), centroid...))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if !result.IsCandidate {
		t.Errorf("own voice rejected: confidence=%.3f threshold=%.3f", result.Confidence, result.Threshold)
	}
	if math.Abs(result.RawSimilarity-1.0) > 1e-9 {
		t.Errorf("RawSimilarity = %f, want 1.0", result.RawSimilarity)
	}
	// Дистанция 0 в пределах внутриклассовой вариации, boost применяется
	if math.Abs(result.Confidence-(result.RawSimilarity+0.1)) > 1e-9 {
		t.Errorf("Confidence = %f, want RawSimilarity + boost", result.Confidence)
	}
	if result.Method != "cosine_similarity_adaptive" {
		t.Errorf("Method = %q", result.Method)
	}
}

func TestVerifier_RejectsDifferentVoice(t *testing.T) {
	centroid := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	profile := fixedProfile(centroid)
	v := NewVerifier(DefaultVerifierConfig())

	// Противоположное направление: дистанция 2, схожесть клиппится в 0
	probe := make([]float64, len(centroid))
	for i, c := range centroid {
		probe[i] = -c
	}
	result, err := v.Verify(profile, probe)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.IsCandidate {
		t.Errorf("impostor accepted: confidence=%.3f threshold=%.3f", result.Confidence, result.Threshold)
	}
	if result.RawSimilarity != 0 {
		t.Errorf("RawSimilarity = %f, want 0 (clamped)", result.RawSimilarity)
	}
	// Дистанция 2 далеко за пределами вариации, boost не применяется
	if result.Confidence != result.RawSimilarity {
		t.Errorf("Confidence = %f, boost must not apply", result.Confidence)
	}
}

func TestVerifier_AdaptiveThreshold(t *testing.T) {
	v := NewVerifier(DefaultVerifierConfig())
	profile := fixedProfile([]float64{1, 2, 3, 4})

	tests := []struct {
		quality float64
		want    float64
	}{
		{1.0, 0.65},       // base * (0.8 + 0.2)
		{0.0, 0.52},       // base * 0.8
		{0.5, 0.65 * 0.9}, // base * (0.8 + 0.1)
	}
	for _, tt := range tests {
		profile.QualityScore = tt.quality
		result, err := v.Verify(profile, []float64{1, 2, 3, 4})
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if math.Abs(result.Threshold-tt.want) > 1e-9 {
			t.Errorf("quality %.1f: threshold = %f, want %f", tt.quality, result.Threshold, tt.want)
		}
	}
}

func TestVerifier_NilProfile(t *testing.T) {
	v := NewVerifier(DefaultVerifierConfig())
	if _, err := v.Verify(nil, []float64{1, 2}); err == nil {
		t.Error("nil profile must fail")
	}
}

func TestVerifier_IncompatibleFeaturesReject(t *testing.T) {
	// Несовместимые признаки это автоматический отказ с причиной,
	// а не ошибка операции
	v := NewVerifier(DefaultVerifierConfig())
	profile := fixedProfile([]float64{1, 2, 3, 4})

	tests := []struct {
		name     string
		features []float64
	}{
		{"empty features", nil},
		{"dimension mismatch", []float64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Verify(profile, tt.features)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if result.IsCandidate {
				t.Error("incompatible features accepted")
			}
			if result.Confidence != 0 {
				t.Errorf("Confidence = %f, want 0", result.Confidence)
			}
			if result.Reason == "" {
				t.Error("rejection without reason")
			}
		})
	}
}

func TestVerifier_ZeroVectorDistance(t *testing.T) {
	v := NewVerifier(DefaultVerifierConfig())
	profile := fixedProfile([]float64{1, 2, 3, 4})

	// Признаки, равные scaler mean, нормализуются в нулевой вектор:
	// косинусная дистанция NaN трактуется как максимальная (1.0)
	result, err := v.Verify(profile, append([]float64(nil), profile.ScalerMean...))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.CosineDistance != 1.0 {
		t.Errorf("CosineDistance = %f, want 1.0", result.CosineDistance)
	}
	if result.IsCandidate {
		t.Error("zero vector must not be a candidate")
	}
}

func TestVerifier_WithBuiltProfile(t *testing.T) {
	// Профиль из builder'а совместим с verifier'ом по формату
	r := rand.New(rand.NewSource(7))
	b := NewBuilder(DefaultBuilderConfig())
	profile, err := b.Build("verify-built", makeSamples(r, baseVoice(), 8, 0.1, 0.9))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	v := NewVerifier(DefaultVerifierConfig())
	probe := makeSamples(r, baseVoice(), 1, 0.1, 0.9)[0]
	result, err := v.Verify(profile, probe.Features)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Threshold <= 0 {
		t.Errorf("Threshold = %f", result.Threshold)
	}
	if math.IsNaN(result.Confidence) {
		t.Error("Confidence is NaN")
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, 2},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineDistance = %f, want %f", got, tt.want)
			}
		})
	}

	if !math.IsNaN(CosineDistance([]float64{0, 0}, []float64{1, 2})) {
		t.Error("zero vector must give NaN")
	}
	if !math.IsNaN(CosineDistance([]float64{1}, []float64{1, 2})) {
		t.Error("length mismatch must give NaN")
	}
	if !math.IsNaN(CosineDistance(nil, nil)) {
		t.Error("empty vectors must give NaN")
	}
}
