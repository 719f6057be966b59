package ai

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

const (
	whisperSampleRate = 16000
	// Минимальная длительность аудио для транскрипции
	minTranscribeSec = 0.1
)

// WhisperConfig конфигурация Whisper движка
type WhisperConfig struct {
	EncoderPath string // Путь к ONNX энкодеру
	DecoderPath string // Путь к ONNX декодеру
	TokensPath  string // Путь к файлу токенов
	VADPath     string // Путь к Silero VAD (опционально, для оценки уверенности)
	Language    string // Язык распознавания ("" = автоопределение)
	NumThreads  int
	Provider    string // ONNX provider: cpu, cuda, coreml
}

// DefaultWhisperConfig возвращает конфигурацию по умолчанию
func DefaultWhisperConfig() WhisperConfig {
	return WhisperConfig{
		Language:   "",
		NumThreads: 4,
		Provider:   "cpu",
	}
}

// WhisperEngine движок транскрипции на базе Whisper через sherpa-onnx.
// Уверенность оценивается через Silero VAD (средняя вероятность речи);
// без VAD модели используется энергетическая эвристика.
type WhisperEngine struct {
	config     WhisperConfig
	recognizer *sherpa.OfflineRecognizer
	vad        *SileroVAD

	mu          sync.Mutex
	initialized bool
}

// NewWhisperEngine создаёт Whisper движок. Модель загружается сразу,
// вызов дорогой (секунды), поэтому движок кэшируется через EngineManager.
func NewWhisperEngine(config WhisperConfig) (*WhisperEngine, error) {
	for _, p := range []string{config.EncoderPath, config.DecoderPath, config.TokensPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("model file not found: %s", p)
		}
	}

	if config.NumThreads <= 0 {
		config.NumThreads = 4
	}
	if config.Provider == "" {
		config.Provider = "cpu"
	}

	sherpaConfig := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: whisperSampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Whisper: sherpa.OfflineWhisperModelConfig{
				Encoder:  config.EncoderPath,
				Decoder:  config.DecoderPath,
				Language: config.Language,
				Task:     "transcribe",
			},
			Tokens:     config.TokensPath,
			NumThreads: config.NumThreads,
			Provider:   config.Provider,
		},
		DecodingMethod: "greedy_search",
	}

	recognizer := sherpa.NewOfflineRecognizer(&sherpaConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("failed to create whisper recognizer (provider=%s)", config.Provider)
	}

	engine := &WhisperEngine{
		config:      config,
		recognizer:  recognizer,
		initialized: true,
	}

	// VAD опционален: без него confidence считается по энергии
	if config.VADPath != "" {
		vadConfig := DefaultSileroVADConfig()
		vadConfig.ModelPath = config.VADPath
		vad, err := NewSileroVAD(vadConfig)
		if err != nil {
			log.Printf("[Whisper] VAD unavailable, using energy heuristic: %v", err)
		} else {
			engine.vad = vad
		}
	}

	log.Printf("[Whisper] engine initialized: encoder=%s, language=%q, threads=%d",
		config.EncoderPath, config.Language, config.NumThreads)
	return engine, nil
}

// SampleRate возвращает ожидаемую частоту дискретизации
func (e *WhisperEngine) SampleRate() int {
	return whisperSampleRate
}

// Transcribe транскрибирует аудио. Слишком короткое аудио и аудио без
// распознанной речи дают Success=false с заполненным Reason, без ошибки.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, fmt.Errorf("whisper engine not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	durationSec := float64(len(samples)) / float64(whisperSampleRate)
	if durationSec < minTranscribeSec {
		return &TranscriptionResult{
			Success:        false,
			Reason:         "audio too short",
			ProcessingTime: time.Since(start),
		}, nil
	}

	stream := sherpa.NewOfflineStream(e.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(whisperSampleRate, samples)
	e.recognizer.Decode(stream)
	result := stream.GetResult()

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return &TranscriptionResult{
			Success:        false,
			Reason:         "no speech recognized",
			Language:       result.Lang,
			ProcessingTime: time.Since(start),
		}, nil
	}

	confidence := e.estimateConfidence(samples)

	return &TranscriptionResult{
		Success:        true,
		Text:           text,
		Language:       result.Lang,
		Confidence:     confidence,
		ProcessingTime: time.Since(start),
		Segments:       buildSegments(result.Tokens, result.Timestamps, durationSec),
	}, nil
}

// estimateConfidence оценивает уверенность как вероятность присутствия
// речи: VAD если доступен, иначе доля фреймов с заметной энергией.
func (e *WhisperEngine) estimateConfidence(samples []float32) float64 {
	if e.vad != nil {
		prob, err := e.vad.SpeechProbability(samples)
		if err == nil {
			return prob
		}
		log.Printf("[Whisper] VAD inference failed: %v", err)
	}

	const frameLen = 512
	var active, total int
	for i := 0; i+frameLen <= len(samples); i += frameLen {
		var sum float64
		for _, s := range samples[i : i+frameLen] {
			sum += float64(s) * float64(s)
		}
		rms := math.Sqrt(sum / frameLen)
		if rms > 0.01 {
			active++
		}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(active) / float64(total)
}

// buildSegments собирает сегменты из токенов с таймстемпами.
// Токен без следующего таймстемпа закрывается концом аудио.
func buildSegments(tokens []string, timestamps []float32, durationSec float64) []TranscriptSegment {
	if len(tokens) == 0 || len(timestamps) == 0 {
		return nil
	}

	n := len(tokens)
	if len(timestamps) < n {
		n = len(timestamps)
	}

	segments := make([]TranscriptSegment, 0, n)
	for i := 0; i < n; i++ {
		tok := strings.TrimSpace(tokens[i])
		if tok == "" {
			continue
		}
		start := float64(timestamps[i])
		end := durationSec
		if i+1 < n {
			end = float64(timestamps[i+1])
		}
		segments = append(segments, TranscriptSegment{
			Start: start,
			End:   end,
			Text:  tok,
		})
	}
	return segments
}

// Close освобождает ресурсы движка
func (e *WhisperEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.vad != nil {
		e.vad.Close()
		e.vad = nil
	}
	if e.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(e.recognizer)
		e.recognizer = nil
	}
	e.initialized = false
	return nil
}
