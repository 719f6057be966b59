package ai

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectrogramConfig конфигурация фреймового спектрального анализа
type SpectrogramConfig struct {
	SampleRate int
	NFFT       int // размер фрейма и FFT (окно Ханна на всю длину)
	HopLength  int
	NMels      int
}

// Spectrogram результат анализа: спектр мощности и log-mel по фреймам
type Spectrogram struct {
	Power     [][]float64 // [numFrames][nFFT/2+1]
	LogMel    [][]float64 // [numFrames][nMels]
	NumFrames int
}

// SpectrogramProcessor вычисляет спектрограммы для извлечения голосовых
// признаков. Фреймы центрированы (как в librosa), паддинг нулями.
type SpectrogramProcessor struct {
	config     SpectrogramConfig
	melFilters [][]float64
	window     []float64
	fft        *fourier.FFT
}

// NewSpectrogramProcessor создаёт новый процессор
func NewSpectrogramProcessor(config SpectrogramConfig) *SpectrogramProcessor {
	return &SpectrogramProcessor{
		config:     config,
		melFilters: createMelFilterbank(config.NFFT, config.NMels, config.SampleRate),
		window:     createHannWindow(config.NFFT),
		fft:        fourier.NewFFT(config.NFFT),
	}
}

// Compute вычисляет спектр мощности и log-mel спектрограмму.
// Детерминировано: одинаковый вход даёт одинаковый выход.
func (p *SpectrogramProcessor) Compute(samples []float32) *Spectrogram {
	if len(samples) == 0 {
		return &Spectrogram{}
	}

	numFrames := len(samples)/p.config.HopLength + 1
	numBins := p.config.NFFT/2 + 1

	result := &Spectrogram{
		Power:     make([][]float64, numFrames),
		LogMel:    make([][]float64, numFrames),
		NumFrames: numFrames,
	}

	frameData := make([]float64, p.config.NFFT)

	for frame := 0; frame < numFrames; frame++ {
		// Центр фрейма на позиции frame * hop
		frameStart := frame*p.config.HopLength - p.config.NFFT/2

		for i := 0; i < p.config.NFFT; i++ {
			sampleIdx := frameStart + i
			if sampleIdx >= 0 && sampleIdx < len(samples) {
				frameData[i] = float64(samples[sampleIdx]) * p.window[i]
			} else {
				frameData[i] = 0
			}
		}

		coeffs := p.fft.Coefficients(nil, frameData)

		powerSpec := make([]float64, numBins)
		for i := 0; i < numBins; i++ {
			re := real(coeffs[i])
			im := imag(coeffs[i])
			powerSpec[i] = re*re + im*im
		}
		result.Power[frame] = powerSpec

		melRow := make([]float64, p.config.NMels)
		for m := 0; m < p.config.NMels; m++ {
			sum := float64(0)
			for k := 0; k < numBins; k++ {
				sum += powerSpec[k] * p.melFilters[m][k]
			}
			if sum < 1e-10 {
				sum = 1e-10
			}
			melRow[m] = math.Log(sum)
		}
		result.LogMel[frame] = melRow
	}

	return result
}

// BinFrequencies возвращает частоту (Hz) каждого FFT-бина
func (p *SpectrogramProcessor) BinFrequencies() []float64 {
	numBins := p.config.NFFT/2 + 1
	freqs := make([]float64, numBins)
	fMax := float64(p.config.SampleRate) / 2.0
	for i := 0; i < numBins; i++ {
		freqs[i] = float64(i) * fMax / float64(numBins-1)
	}
	return freqs
}

// createMelFilterbank создаёт mel-фильтры (HTK формула, работаем в Hz)
func createMelFilterbank(nFFT, nMels, sampleRate int) [][]float64 {
	hzToMel := func(hz float64) float64 {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}
	melToHz := func(mel float64) float64 {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}

	numBins := nFFT/2 + 1
	fMax := float64(sampleRate) / 2.0

	allFreqs := make([]float64, numBins)
	for i := 0; i < numBins; i++ {
		allFreqs[i] = float64(i) * fMax / float64(numBins-1)
	}

	// nMels + 2 опорных точки: левый край, центры, правый край
	mMin := hzToMel(0)
	mMax := hzToMel(fMax)
	fPts := make([]float64, nMels+2)
	for i := 0; i < nMels+2; i++ {
		mel := mMin + float64(i)*(mMax-mMin)/float64(nMels+1)
		fPts[i] = melToHz(mel)
	}

	fDiff := make([]float64, nMels+1)
	for i := 0; i < nMels+1; i++ {
		fDiff[i] = fPts[i+1] - fPts[i]
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		filters[m] = make([]float64, numBins)
		for k := 0; k < numBins; k++ {
			freq := allFreqs[k]
			lower := (freq - fPts[m]) / fDiff[m]
			upper := (fPts[m+2] - freq) / fDiff[m+1]
			val := math.Min(lower, upper)
			if val < 0 {
				val = 0
			}
			filters[m][k] = val
		}
	}

	return filters
}

// createHannWindow создаёт окно Ханна
func createHannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := 0; i < size; i++ {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}
