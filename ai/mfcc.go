package ai

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FeatureConfig параметры извлечения голосовых признаков
type FeatureConfig struct {
	SampleRate int
	NumCoeffs  int // количество MFCC коэффициентов
	NFFT       int
	HopLength  int
	NMels      int
}

// DefaultFeatureConfig параметры по умолчанию (как при калибровке)
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		SampleRate: 16000,
		NumCoeffs:  13,
		NFFT:       2048,
		HopLength:  512,
		NMels:      40,
	}
}

// FeatureExtractor извлекает вектор голосовых признаков фиксированной
// длины для speaker identification: средние и стандартные отклонения
// MFCC по времени плюс статистики спектрального центроида, zero crossing
// rate и RMS энергии. Размерность не зависит от длительности аудио.
type FeatureExtractor struct {
	config FeatureConfig
	spec   *SpectrogramProcessor
	dct    [][]float64 // DCT-II матрица [NumCoeffs][NMels], норма ortho
}

// NewFeatureExtractor создаёт экстрактор признаков
func NewFeatureExtractor(config FeatureConfig) *FeatureExtractor {
	return &FeatureExtractor{
		config: config,
		spec: NewSpectrogramProcessor(SpectrogramConfig{
			SampleRate: config.SampleRate,
			NFFT:       config.NFFT,
			HopLength:  config.HopLength,
			NMels:      config.NMels,
		}),
		dct: createDCTMatrix(config.NumCoeffs, config.NMels),
	}
}

// Dimension размерность итогового вектора признаков
func (fe *FeatureExtractor) Dimension() int {
	// mean+std на каждый MFCC, плюс mean/std центроида, ZCR и RMS
	return 2*fe.config.NumCoeffs + 6
}

// Extract извлекает вектор признаков. Возвращает nil для пустого аудио.
// Детерминировано: без какой-либо случайности.
func (fe *FeatureExtractor) Extract(samples []float32) []float64 {
	if len(samples) == 0 {
		return nil
	}

	sp := fe.spec.Compute(samples)
	if sp.NumFrames == 0 {
		return nil
	}

	features := make([]float64, 0, fe.Dimension())

	// MFCC: DCT от log-mel, затем mean и std каждого коэффициента по времени
	mfcc := make([][]float64, fe.config.NumCoeffs)
	for c := 0; c < fe.config.NumCoeffs; c++ {
		mfcc[c] = make([]float64, sp.NumFrames)
		for t := 0; t < sp.NumFrames; t++ {
			var sum float64
			for m := 0; m < fe.config.NMels; m++ {
				sum += fe.dct[c][m] * sp.LogMel[t][m]
			}
			mfcc[c][t] = sum
		}
	}
	for c := 0; c < fe.config.NumCoeffs; c++ {
		mean, _ := meanStd(mfcc[c])
		features = append(features, mean)
	}
	for c := 0; c < fe.config.NumCoeffs; c++ {
		_, std := meanStd(mfcc[c])
		features = append(features, std)
	}

	// Спектральный центроид (характеристика тембра)
	freqs := fe.spec.BinFrequencies()
	centroids := make([]float64, sp.NumFrames)
	for t := 0; t < sp.NumFrames; t++ {
		var num, den float64
		for k, p := range sp.Power[t] {
			num += freqs[k] * p
			den += p
		}
		if den > 0 {
			centroids[t] = num / den
		}
	}
	cMean, cStd := meanStd(centroids)
	features = append(features, cMean, cStd)

	// Zero crossing rate по фреймам
	zMean, zStd := meanStd(zeroCrossingRates(samples, fe.config.NFFT, fe.config.HopLength))
	features = append(features, zMean, zStd)

	// RMS энергия по фреймам
	rMean, rStd := meanStd(rmsEnergies(samples, fe.config.NFFT, fe.config.HopLength))
	features = append(features, rMean, rStd)

	return features
}

// zeroCrossingRates доля смен знака в каждом фрейме
func zeroCrossingRates(samples []float32, frameLen, hop int) []float64 {
	if len(samples) < frameLen {
		frameLen = len(samples)
	}
	numFrames := (len(samples)-frameLen)/hop + 1
	rates := make([]float64, numFrames)
	for f := 0; f < numFrames; f++ {
		start := f * hop
		crossings := 0
		for i := start + 1; i < start+frameLen; i++ {
			if (samples[i-1] >= 0) != (samples[i] >= 0) {
				crossings++
			}
		}
		rates[f] = float64(crossings) / float64(frameLen)
	}
	return rates
}

// rmsEnergies RMS энергия каждого фрейма
func rmsEnergies(samples []float32, frameLen, hop int) []float64 {
	if len(samples) < frameLen {
		frameLen = len(samples)
	}
	numFrames := (len(samples)-frameLen)/hop + 1
	energies := make([]float64, numFrames)
	for f := 0; f < numFrames; f++ {
		start := f * hop
		var sum float64
		for i := start; i < start+frameLen; i++ {
			sum += float64(samples[i]) * float64(samples[i])
		}
		energies[f] = math.Sqrt(sum / float64(frameLen))
	}
	return energies
}

// meanStd среднее и стандартное отклонение (по населению, как np.std)
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean := stat.Mean(xs, nil)
	variance := stat.MomentAbout(2, xs, mean, nil)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// createDCTMatrix создаёт матрицу DCT-II с ортонормальной нормировкой
// (как scipy.fftpack.dct norm='ortho', используемый librosa для MFCC)
func createDCTMatrix(numCoeffs, nMels int) [][]float64 {
	m := make([][]float64, numCoeffs)
	for c := 0; c < numCoeffs; c++ {
		m[c] = make([]float64, nMels)
		scale := math.Sqrt(2.0 / float64(nMels))
		if c == 0 {
			scale = math.Sqrt(1.0 / float64(nMels))
		}
		for k := 0; k < nMels; k++ {
			m[c][k] = scale * math.Cos(math.Pi*float64(c)*(2*float64(k)+1)/(2*float64(nMels)))
		}
	}
	return m
}
