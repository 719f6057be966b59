// Package decode преобразует сырые аудио байты (записи браузера в разных
// контейнерах) в mono PCM waveform с фиксированной частотой дискретизации.
// Расширению файла не доверяем - формат определяется по магическим байтам.
package decode

import (
	"bytes"
	"encoding/hex"
	"log"
)

// Format семейство контейнера/кодека, определённое по сигнатуре
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOgg  Format = "ogg"
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatFLAC Format = "flac"
)

// sniffLen сколько байт префикса достаточно для классификации
const sniffLen = 12

// DetectFormat определяет формат по первым байтам буфера.
// Никогда не возвращает ошибку: неизвестный префикс трактуем как WebM
// (самое терпимое к повреждениям семейство, как записывает MediaRecorder).
func DetectFormat(data []byte) Format {
	if len(data) < 4 {
		log.Printf("[Decode] Буфер слишком короткий для сигнатуры (%d байт), считаем WebM", len(data))
		return FormatWebM
	}

	prefix := data
	if len(prefix) > sniffLen {
		prefix = prefix[:sniffLen]
	}

	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.Equal(data[:4], []byte("OggS")):
		return FormatOgg
	case bytes.Equal(data[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		// EBML заголовок - WebM или Matroska
		return FormatWebM
	case bytes.Contains(prefix, []byte("ftyp")):
		// ISO-BMFF: ftyp лежит на смещении 4
		return FormatMP4
	case bytes.Equal(data[:4], []byte("fLaC")):
		return FormatFLAC
	case bytes.Equal(data[:3], []byte("ID3")):
		return FormatMP3
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MP3 frame sync (11 единичных бит)
		return FormatMP3
	}

	log.Printf("[Decode] Неизвестная сигнатура %s, пробуем как WebM", hex.EncodeToString(prefix))
	return FormatWebM
}
