package voiceprofile

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// makeSamples генерирует образцы вокруг базового вектора с небольшим шумом
func makeSamples(r *rand.Rand, base []float64, n int, noise, confidence float64) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		features := make([]float64, len(base))
		for j, b := range base {
			features[j] = b + noise*r.NormFloat64()
		}
		samples[i] = Sample{Features: features, Confidence: confidence}
	}
	return samples
}

func baseVoice() []float64 {
	base := make([]float64, 32)
	for i := range base {
		base[i] = float64(i%7) - 3.0
	}
	return base
}

func TestBuilder_Build(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	b := NewBuilder(DefaultBuilderConfig())

	samples := makeSamples(r, baseVoice(), 6, 0.1, 0.9)
	profile, err := b.Build("sess-1", samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if profile.NumSamples != 6 {
		t.Errorf("NumSamples = %d, want 6", profile.NumSamples)
	}
	if profile.GoodSamples != 6 {
		t.Errorf("GoodSamples = %d, want 6", profile.GoodSamples)
	}
	if profile.QualityScore != 1.0 {
		t.Errorf("QualityScore = %f, want 1.0", profile.QualityScore)
	}
	if profile.FeatureDimension != 32 {
		t.Errorf("FeatureDimension = %d, want 32", profile.FeatureDimension)
	}
	if profile.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", profile.SessionID)
	}
	if profile.AvgIntraDistance <= 0 || profile.AvgIntraDistance >= 2 {
		t.Errorf("AvgIntraDistance = %f", profile.AvgIntraDistance)
	}
}

func TestBuilder_InsufficientSamples(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	b := NewBuilder(DefaultBuilderConfig())

	_, err := b.Build("sess", makeSamples(r, baseVoice(), 3, 0.1, 0.9))
	var insufficient *ErrInsufficientSamples
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want ErrInsufficientSamples", err)
	}
	if insufficient.Have != 3 || insufficient.Need != 5 {
		t.Errorf("Have=%d Need=%d, want 3 and 5", insufficient.Have, insufficient.Need)
	}
}

func TestBuilder_EmptyFeaturesDropped(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	b := NewBuilder(DefaultBuilderConfig())

	samples := makeSamples(r, baseVoice(), 5, 0.1, 0.9)
	samples = append(samples, Sample{Features: nil, Confidence: 0.9})

	profile, err := b.Build("sess", samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if profile.NumSamples != 5 {
		t.Errorf("NumSamples = %d, want 5 (empty sample dropped)", profile.NumSamples)
	}
}

func TestBuilder_QualityScore(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	b := NewBuilder(DefaultBuilderConfig())

	// 3 хороших образца из 6
	good := makeSamples(r, baseVoice(), 3, 0.1, 0.9)
	poor := makeSamples(r, baseVoice(), 3, 0.1, 0.4)
	profile, err := b.Build("sess", append(good, poor...))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if math.Abs(profile.QualityScore-0.5) > 1e-9 {
		t.Errorf("QualityScore = %f, want 0.5", profile.QualityScore)
	}
	if profile.GoodSamples != 3 {
		t.Errorf("GoodSamples = %d, want 3", profile.GoodSamples)
	}
}

func TestBuilder_ConstantFeatureScale(t *testing.T) {
	b := NewBuilder(BuilderConfig{MinSamples: 2, GoodConfidence: 0.7})

	// Один из признаков одинаков у всех, его разброс нулевой
	samples := []Sample{
		{Features: []float64{1.0, 2.0, 5.0}, Confidence: 0.9},
		{Features: []float64{1.0, 3.0, 6.0}, Confidence: 0.9},
		{Features: []float64{1.0, 4.0, 7.0}, Confidence: 0.9},
	}
	profile, err := b.Build("sess", samples)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Нулевой scale заменяется единицей
	if profile.ScalerScale[0] != 1.0 {
		t.Errorf("ScalerScale[0] = %f, want 1.0", profile.ScalerScale[0])
	}
	for i, f := range profile.MeanFeatures {
		if math.IsNaN(f) {
			t.Errorf("MeanFeatures[%d] is NaN", i)
		}
	}
}

func TestBuilder_InconsistentDimensions(t *testing.T) {
	b := NewBuilder(BuilderConfig{MinSamples: 2, GoodConfidence: 0.7})
	samples := []Sample{
		{Features: []float64{1, 2, 3}, Confidence: 0.9},
		{Features: []float64{1, 2}, Confidence: 0.9},
	}
	if _, err := b.Build("sess", samples); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSaveLoadProfile(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	b := NewBuilder(DefaultBuilderConfig())
	profile, err := b.Build("sess-store", makeSamples(r, baseVoice(), 5, 0.1, 0.9))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dir := t.TempDir()
	if err := SaveProfile(dir, profile); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	loaded, err := LoadProfile(dir)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if loaded.SessionID != profile.SessionID {
		t.Errorf("SessionID = %q, want %q", loaded.SessionID, profile.SessionID)
	}
	if loaded.NumSamples != profile.NumSamples {
		t.Errorf("NumSamples = %d, want %d", loaded.NumSamples, profile.NumSamples)
	}
	if len(loaded.MeanFeatures) != len(profile.MeanFeatures) {
		t.Fatalf("MeanFeatures len = %d, want %d", len(loaded.MeanFeatures), len(profile.MeanFeatures))
	}
	for i := range loaded.MeanFeatures {
		if loaded.MeanFeatures[i] != profile.MeanFeatures[i] {
			t.Fatalf("MeanFeatures[%d] = %f, want %f", i, loaded.MeanFeatures[i], profile.MeanFeatures[i])
		}
	}
}
