package decode

import (
	"math"
)

const (
	// minDurationSec минимальная длительность пригодного аудио.
	// Всё что короче после обрезки тишины считается пустым результатом.
	minDurationSec = 0.3

	// trimTopDB порог обрезки тишины относительно пика (мягкий)
	trimTopDB = 20.0
)

// Normalize нормализует амплитуду к пику 1.0.
// Слишком тихий сигнал не трогаем, чтобы не усиливать шум до клиппинга.
func Normalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}

	if peak < 1e-5 {
		return samples
	}

	out := make([]float32, len(samples))
	scale := 1.0 / peak
	for i, s := range samples {
		out[i] = s * scale
	}
	return out
}

// TrimSilence обрезает тишину в начале и конце по оконному RMS.
// Порог topDB децибел ниже пикового RMS окна. Если весь сигнал ниже
// порога, возвращаем исходный слайс - обрезка не фатальна.
func TrimSilence(samples []float32, topDB float64) []float32 {
	const frameLen = 2048
	const hop = 512

	if len(samples) < frameLen {
		return samples
	}

	numFrames := (len(samples)-frameLen)/hop + 1
	rms := make([]float64, numFrames)
	var peak float64
	for f := 0; f < numFrames; f++ {
		var sum float64
		for i := f * hop; i < f*hop+frameLen; i++ {
			sum += float64(samples[i]) * float64(samples[i])
		}
		rms[f] = math.Sqrt(sum / frameLen)
		if rms[f] > peak {
			peak = rms[f]
		}
	}

	if peak <= 0 {
		return samples
	}

	threshold := peak * math.Pow(10, -topDB/20)

	first, last := -1, -1
	for f := 0; f < numFrames; f++ {
		if rms[f] > threshold {
			if first < 0 {
				first = f
			}
			last = f
		}
	}

	if first < 0 {
		// Ни одно окно не громче порога - оставляем как есть
		return samples
	}

	start := first * hop
	end := last*hop + frameLen
	if end > len(samples) {
		end = len(samples)
	}
	return samples[start:end]
}
