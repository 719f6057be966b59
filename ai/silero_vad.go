// Package ai содержит движки транскрипции и извлечение голосовых признаков
package ai

import (
	"fmt"
	"log"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// SileroVADConfig конфигурация Silero VAD
type SileroVADConfig struct {
	ModelPath  string  // Путь к ONNX модели
	SampleRate int     // Частота дискретизации (8000 или 16000)
	Threshold  float32 // Порог вероятности речи (0.0 - 1.0)
}

// DefaultSileroVADConfig возвращает конфигурацию по умолчанию
func DefaultSileroVADConfig() SileroVADConfig {
	return SileroVADConfig{
		SampleRate: 16000,
		Threshold:  0.5,
	}
}

// SileroVAD движок определения голосовой активности на основе Silero VAD.
// Используется как оценка уверенности: средняя вероятность речи по аудио
// идёт в confidence результата транскрипции.
type SileroVAD struct {
	session *ort.DynamicAdvancedSession
	config  SileroVADConfig

	// LSTM состояние (сохраняется между вызовами для streaming)
	state []float32

	// Контекст - последние N сэмплов предыдущего чанка
	// 64 сэмпла для 16kHz, 32 для 8kHz
	context []float32

	mu          sync.Mutex
	initialized bool
}

// NewSileroVAD создаёт новый Silero VAD движок
func NewSileroVAD(config SileroVADConfig) (*SileroVAD, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}

	if config.SampleRate != 8000 && config.SampleRate != 16000 {
		return nil, fmt.Errorf("sample rate must be 8000 or 16000, got %d", config.SampleRate)
	}

	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	// Silero VAD inputs: input, state, sr
	// Silero VAD outputs: output, stateN
	inputNames := []string{"input", "state", "sr"}
	outputNames := []string{"output", "stateN"}

	session, err := ort.NewDynamicAdvancedSession(
		config.ModelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	// Размер контекста: 64 для 16kHz, 32 для 8kHz
	contextSize := 64
	if config.SampleRate == 8000 {
		contextSize = 32
	}

	vad := &SileroVAD{
		session:     session,
		config:      config,
		state:       make([]float32, 2*1*128), // [2, 1, 128] - h и c состояния LSTM
		context:     make([]float32, contextSize),
		initialized: true,
	}

	log.Printf("[SileroVAD] initialized: sample_rate=%d, threshold=%.2f", config.SampleRate, config.Threshold)
	return vad, nil
}

// ResetState сбрасывает LSTM состояние и контекст
func (v *SileroVAD) ResetState() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.state {
		v.state[i] = 0
	}
	for i := range v.context {
		v.context[i] = 0
	}
}

// ProcessChunk обрабатывает один чанк аудио и возвращает вероятность речи.
// Размер чанка должен быть 512 для 16kHz или 256 для 8kHz.
func (v *SileroVAD) ProcessChunk(samples []float32) (float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return 0, fmt.Errorf("Silero VAD not initialized")
	}

	contextSize := len(v.context)

	// Входной буфер: context + samples, [batch, context_size + window_size]
	inputData := make([]float32, contextSize+len(samples))
	copy(inputData[:contextSize], v.context)
	copy(inputData[contextSize:], samples)

	// Обновляем контекст для следующего вызова (последние contextSize сэмплов)
	if len(samples) >= contextSize {
		copy(v.context, samples[len(samples)-contextSize:])
	} else {
		copy(v.context, v.context[len(samples):])
		copy(v.context[contextSize-len(samples):], samples)
	}

	batchSize := int64(1)
	numSamples := int64(len(inputData))

	inputShape := ort.NewShape(batchSize, numSamples)
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// state: [2, batch, 128]
	stateShape := ort.NewShape(2, batchSize, 128)
	stateTensor, err := ort.NewTensor(stateShape, v.state)
	if err != nil {
		return 0, fmt.Errorf("failed to create state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	// sr: scalar (int64)
	srData := []int64{int64(v.config.SampleRate)}
	srShape := ort.NewShape(1)
	srTensor, err := ort.NewTensor(srShape, srData)
	if err != nil {
		return 0, fmt.Errorf("failed to create sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	err = v.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs)
	if err != nil {
		return 0, fmt.Errorf("failed to run inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	outputTensor := outputs[0].(*ort.Tensor[float32])
	outputData := outputTensor.GetData()

	stateNTensor := outputs[1].(*ort.Tensor[float32])
	copy(v.state, stateNTensor.GetData())

	if len(outputData) > 0 {
		return outputData[0], nil
	}
	return 0, nil
}

// SpeechProbability возвращает среднюю вероятность речи по всему аудио.
// Аудио обрабатывается окнами по 512 сэмплов (16kHz) или 256 (8kHz),
// последнее неполное окно дополняется нулями.
func (v *SileroVAD) SpeechProbability(samples []float32) (float64, error) {
	v.ResetState()

	windowSize := 512
	if v.config.SampleRate == 8000 {
		windowSize = 256
	}

	if len(samples) == 0 {
		return 0, nil
	}

	var probSum float64
	var count int

	for i := 0; i < len(samples); i += windowSize {
		end := i + windowSize
		var chunk []float32
		if end <= len(samples) {
			chunk = samples[i:end]
		} else {
			chunk = make([]float32, windowSize)
			copy(chunk, samples[i:])
		}

		prob, err := v.ProcessChunk(chunk)
		if err != nil {
			return 0, err
		}
		probSum += float64(prob)
		count++
	}

	return probSum / float64(count), nil
}

// Close освобождает ресурсы
func (v *SileroVAD) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session != nil {
		v.session.Destroy()
		v.session = nil
	}
	v.initialized = false
}

// ONNX Runtime глобальная инициализация
var (
	onnxInitialized bool
	onnxInitMu      sync.Mutex
)

func initONNXRuntime() error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if onnxInitialized {
		return nil
	}

	// Путь к библиотеке берётся из переменной окружения,
	// иначе ищем рядом с исполняемым файлом
	libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")

	if libPath == "" {
		searchPaths := []string{
			"./libonnxruntime.so",
			"./libonnxruntime.dylib",
			"./onnxruntime.dll",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				libPath = path
				break
			}
		}
	}

	if libPath != "" {
		log.Printf("Using ONNX Runtime library: %s", libPath)
		ort.SetSharedLibraryPath(libPath)
	} else {
		log.Println("ONNX Runtime library not found, Silero VAD will not be available")
		return fmt.Errorf("ONNX Runtime library not found")
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}

	onnxInitialized = true
	log.Println("ONNX Runtime initialized successfully")
	return nil
}
