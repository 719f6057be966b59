package proctor

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// writeWAV сохраняет float32 сэмплы как PCM16 WAV файл
func writeWAV(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer file.Close()

	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := uint32(len(samples) * bitsPerSample / 8)

	// RIFF header
	file.WriteString("RIFF")
	binary.Write(file, binary.LittleEndian, uint32(36+dataSize))
	file.WriteString("WAVE")

	// fmt chunk
	file.WriteString("fmt ")
	binary.Write(file, binary.LittleEndian, uint32(16))         // chunk size
	binary.Write(file, binary.LittleEndian, uint16(1))          // PCM
	binary.Write(file, binary.LittleEndian, uint16(channels))   // channels
	binary.Write(file, binary.LittleEndian, uint32(sampleRate)) // sample rate
	binary.Write(file, binary.LittleEndian, uint32(byteRate))   // byte rate
	binary.Write(file, binary.LittleEndian, uint16(blockAlign)) // block align
	binary.Write(file, binary.LittleEndian, uint16(bitsPerSample))

	// data chunk
	file.WriteString("data")
	binary.Write(file, binary.LittleEndian, dataSize)

	for _, s := range samples {
		// Clamp
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		if err := binary.Write(file, binary.LittleEndian, int16(s*32767)); err != nil {
			return err
		}
	}

	return nil
}

// writeMP3 сохраняет сэмплы как MP3 через shine-mp3 (чистый Go, без FFmpeg)
func writeMP3(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create MP3 file: %w", err)
	}
	defer file.Close()

	const channels = 1
	encoder := mp3.NewEncoder(sampleRate, channels)

	pcm := make([]int16, 0, len(samples))
	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		pcm = append(pcm, int16(s*32767))
	}

	// Shine кодирует блоками по 1152 сэмплов, дополняем нулями
	const blockSize = 1152 * channels
	for len(pcm)%blockSize != 0 {
		pcm = append(pcm, 0)
	}

	encoder.Write(file, pcm)
	return nil
}

// saveArtifact сохраняет аудио артефакт сессии.
// Ошибки записи логируются и не влияют на результат операции.
func (sys *System) saveArtifact(path string, samples []float32) {
	if err := writeWAV(path, samples, sys.config.SampleRate); err != nil {
		log.Printf("[Proctor] failed to save artifact %s: %v", path, err)
		return
	}
	if sys.config.ExportMP3 {
		mp3Path := path[:len(path)-len(".wav")] + ".mp3"
		if err := writeMP3(mp3Path, samples, sys.config.SampleRate); err != nil {
			log.Printf("[Proctor] failed to save MP3 artifact %s: %v", mp3Path, err)
		}
	}
}

// saveArtifactAsync сохраняет артефакт в фоне, ответ анализа не ждёт диска
func (sys *System) saveArtifactAsync(path string, samples []float32) {
	data := make([]float32, len(samples))
	copy(data, samples)
	go sys.saveArtifact(path, data)
}
