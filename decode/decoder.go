package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os/exec"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Decoder превращает произвольный аудио буфер в mono float32 waveform
// с частотой TargetRate. Стратегии декодирования пробуются по порядку,
// первая успешная побеждает. Полный провал - пустой слайс, не ошибка:
// вызывающий код обязан проверять len()==0.
type Decoder struct {
	TargetRate int
	FFmpegPath string // путь к ffmpeg; пусто = искать в PATH
}

// NewDecoder создаёт декодер с каскадом стратегий по умолчанию
func NewDecoder(targetRate int) *Decoder {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		log.Printf("[Decode] ffmpeg не найден в PATH, транскодирование недоступно")
		path = ""
	}
	return &Decoder{
		TargetRate: targetRate,
		FFmpegPath: path,
	}
}

// strategy одна попытка декодирования
type strategy struct {
	name string
	fn   func(ctx context.Context, data []byte, format Format) ([]float32, error)
}

// Decode прогоняет буфер через каскад стратегий и пост-обработку.
// Возвращает пустой слайс при полном провале или слишком коротком аудио.
func (d *Decoder) Decode(ctx context.Context, data []byte) []float32 {
	if len(data) == 0 {
		log.Printf("[Decode] Пустой входной буфер")
		return nil
	}

	format := DetectFormat(data)
	log.Printf("[Decode] Определён формат: %s (%d байт)", format, len(data))

	strategies := []strategy{
		{"wav-native", d.decodeWAVNative},
		{"mp3-go", d.decodeMP3},
		{"ffmpeg", d.decodeFFmpeg},
		{"relabel-ogg", d.decodeRelabeled},
		{"raw-pcm", d.decodeRawPCM},
	}

	for _, s := range strategies {
		samples, err := s.fn(ctx, data, format)
		if err != nil {
			log.Printf("[Decode] Стратегия %s: %v", s.name, err)
			continue
		}
		if len(samples) == 0 {
			continue
		}

		log.Printf("[Decode] Стратегия %s успешна: %d сэмплов", s.name, len(samples))
		return d.postprocess(samples, s.name)
	}

	log.Printf("[Decode] Все стратегии провалились (%d байт, формат %s)", len(data), format)
	return nil
}

// postprocess применяет нормализацию, обрезку тишины и проверку длительности
func (d *Decoder) postprocess(samples []float32, method string) []float32 {
	samples = Normalize(samples)
	samples = TrimSilence(samples, trimTopDB)

	minSamples := int(minDurationSec * float64(d.TargetRate))
	if len(samples) < minSamples {
		log.Printf("[Decode] Аудио слишком короткое после обрезки: %.2fс (минимум %.1fс)",
			float64(len(samples))/float64(d.TargetRate), minDurationSec)
		return nil
	}

	log.Printf("[Decode] Готово (%s): %.2fс, %d сэмплов",
		method, float64(len(samples))/float64(d.TargetRate), len(samples))
	return samples
}

// decodeWAVNative нативный разбор RIFF/WAVE
func (d *Decoder) decodeWAVNative(_ context.Context, data []byte, format Format) ([]float32, error) {
	if format != FormatWAV {
		return nil, fmt.Errorf("not WAV")
	}
	return decodeWAV(data, d.TargetRate)
}

// decodeMP3 декодирование через go-mp3 (чистый Go, без FFmpeg)
func (d *Decoder) decodeMP3(_ context.Context, data []byte, format Format) ([]float32, error) {
	if format != FormatMP3 {
		return nil, fmt.Errorf("not MP3")
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3 decoder: %w", err)
	}

	// go-mp3 всегда отдаёт signed 16-bit stereo
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 read: %w", err)
	}

	numFrames := len(pcm) / 4
	mono := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		mono[i] = (float32(left) + float32(right)) / 2.0 / 32768.0
	}

	if decoder.SampleRate() != d.TargetRate {
		mono = resampleLinear(mono, decoder.SampleRate(), d.TargetRate)
	}
	return mono, nil
}

// decodeFFmpeg транскодирование внешним ffmpeg в канонический s16le PCM.
// Работает через pipe: временные файлы не нужны.
func (d *Decoder) decodeFFmpeg(ctx context.Context, data []byte, _ Format) ([]float32, error) {
	return d.runFFmpeg(ctx, data, nil)
}

// decodeRelabeled повторная попытка для неоднозначного WebM: некоторые
// записи MediaRecorder это фактически Ogg, который декодеры принимают
// только под правильной меткой контейнера.
func (d *Decoder) decodeRelabeled(ctx context.Context, data []byte, format Format) ([]float32, error) {
	if format != FormatWebM {
		return nil, fmt.Errorf("relabel applies to WebM only")
	}
	return d.runFFmpeg(ctx, data, []string{"-f", "ogg"})
}

func (d *Decoder) runFFmpeg(ctx context.Context, data []byte, inputArgs []string) ([]float32, error) {
	if d.FFmpegPath == "" {
		return nil, fmt.Errorf("ffmpeg unavailable")
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, inputArgs...)
	args = append(args,
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", d.TargetRate),
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, d.FFmpegPath, args...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %v (%s)", err, stderr.String())
	}

	pcm := stdout.Bytes()
	if len(pcm) < 2 {
		return nil, fmt.Errorf("ffmpeg produced no audio")
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples, nil
}

// rawPCMOffsets кандидаты на размер заголовка для эвристики raw-PCM.
// 44 - стандартный WAV заголовок, остальные - типовые размеры метаданных.
var rawPCMOffsets = []int{0, 44, 64, 128, 512, 1024}

// decodeRawPCM последняя надежда: пропускаем предполагаемый заголовок и
// интерпретируем остаток как 16-bit little-endian PCM. Принимаем результат
// только при достаточной длине и ненулевой дисперсии (отсев тишины/мусора).
// Эвристика ненадёжна по построению - используется только когда всё
// остальное уже провалилось.
func (d *Decoder) decodeRawPCM(_ context.Context, data []byte, _ Format) ([]float32, error) {
	minSamples := int(minDurationSec * float64(d.TargetRate))

	for _, skip := range rawPCMOffsets {
		if skip >= len(data)-2 {
			continue
		}
		payload := data[skip:]
		n := len(payload) / 2
		if n < minSamples {
			continue
		}

		samples := make([]float32, n)
		for i := 0; i < n; i++ {
			samples[i] = float32(int16(binary.LittleEndian.Uint16(payload[i*2:]))) / 32768.0
		}

		if variance(samples) < rawPCMMinVariance {
			continue
		}

		log.Printf("[Decode] Raw-PCM эвристика: skip=%d, %d сэмплов", skip, n)
		return samples, nil
	}

	return nil, fmt.Errorf("no plausible raw PCM payload")
}

// rawPCMMinVariance минимальная дисперсия для принятия raw-PCM результата
const rawPCMMinVariance = 1e-6

func variance(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := float64(s) - mean
		sq += d * d
	}
	return sq / float64(len(samples))
}
