package decode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// wavFormat распарсенный fmt-чанк RIFF/WAVE
type wavFormat struct {
	audioFormat   uint16 // 1 = PCM, 3 = IEEE float
	channels      int
	sampleRate    int
	bitsPerSample int
}

// decodeWAV разбирает RIFF/WAVE контейнер и возвращает mono float32 сэмплы
// с частотой targetRate. Поддерживаем PCM 8/16/24/32 бит и float32.
func decodeWAV(data []byte, targetRate int) ([]float32, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("WAV too short: %d bytes", len(data))
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	var format *wavFormat
	var pcm []byte

	// Идём по чанкам: интересуют "fmt " и "data"
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if chunkSize < 0 || body > len(data) {
			break
		}
		end := body + chunkSize
		if end > len(data) {
			// Урезанный файл - берём что есть (частая ситуация с
			// прерванной записью браузера)
			end = len(data)
		}

		switch chunkID {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", end-body)
			}
			format = &wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(data[body : body+2]),
				channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				sampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				bitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
		case "data":
			pcm = data[body:end]
		}

		// Чанки выравниваются по чётной границе
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if format == nil {
		return nil, fmt.Errorf("fmt chunk not found")
	}
	if pcm == nil {
		return nil, fmt.Errorf("data chunk not found")
	}
	if format.channels < 1 || format.channels > 8 {
		return nil, fmt.Errorf("unsupported channel count: %d", format.channels)
	}
	if format.sampleRate < 8000 || format.sampleRate > 192000 {
		return nil, fmt.Errorf("suspicious sample rate: %d", format.sampleRate)
	}

	samples, err := pcmToFloat32(pcm, format)
	if err != nil {
		return nil, err
	}

	mono := downmixMono(samples, format.channels)
	if format.sampleRate != targetRate {
		mono = resampleLinear(mono, format.sampleRate, targetRate)
	}
	return mono, nil
}

// pcmToFloat32 конвертирует interleaved PCM в float32 [-1, 1]
func pcmToFloat32(pcm []byte, format *wavFormat) ([]float32, error) {
	switch {
	case format.audioFormat == 3 && format.bitsPerSample == 32:
		n := len(pcm) / 4
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(pcm[i*4:])
			out[i] = math.Float32frombits(bits)
		}
		return out, nil

	case format.audioFormat == 1 && format.bitsPerSample == 16:
		n := len(pcm) / 2
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
			out[i] = float32(s) / 32768.0
		}
		return out, nil

	case format.audioFormat == 1 && format.bitsPerSample == 8:
		// 8-битный PCM беззнаковый
		out := make([]float32, len(pcm))
		for i, b := range pcm {
			out[i] = (float32(b) - 128.0) / 128.0
		}
		return out, nil

	case format.audioFormat == 1 && format.bitsPerSample == 24:
		n := len(pcm) / 3
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int32(pcm[i*3]) | int32(pcm[i*3+1])<<8 | int32(pcm[i*3+2])<<16
			// Расширение знака с 24 бит
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			out[i] = float32(v) / 8388608.0
		}
		return out, nil

	case format.audioFormat == 1 && format.bitsPerSample == 32:
		n := len(pcm) / 4
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(pcm[i*4:]))
			out[i] = float32(float64(v) / 2147483648.0)
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported WAV encoding: format=%d bits=%d", format.audioFormat, format.bitsPerSample)
}

// downmixMono сводит interleaved каналы в моно усреднением
func downmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// resampleLinear выполняет линейную интерполяцию для ресемплинга
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return nil
	}
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}
