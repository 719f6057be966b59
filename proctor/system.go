package proctor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hrproctor/ai"
	"hrproctor/decode"
	"hrproctor/voiceprofile"
)

// System система прокторинга: декодирование аудио, транскрипция,
// голосовые профили и проверка говорящего. Движок транскрипции
// загружается один раз и разделяется всеми сессиями.
type System struct {
	config       Config
	audioLogsDir string

	decoder   *decode.Decoder
	extractor *ai.FeatureExtractor
	engines   *ai.EngineManager
	builder   *voiceprofile.Builder
	verifier  *voiceprofile.Verifier

	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSystem создаёт систему прокторинга
func NewSystem(dataDir string, config Config, engines *ai.EngineManager) (*System, error) {
	audioLogsDir := filepath.Join(dataDir, "audio_logs")
	if err := os.MkdirAll(audioLogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio logs dir: %w", err)
	}

	featConfig := ai.DefaultFeatureConfig()
	featConfig.SampleRate = config.SampleRate
	featConfig.NumCoeffs = config.MFCCFeatures

	builderConfig := voiceprofile.DefaultBuilderConfig()
	builderConfig.MinSamples = config.MinCalibrationSamples

	verifierConfig := voiceprofile.DefaultVerifierConfig()
	verifierConfig.BaseThreshold = config.SimilarityThreshold

	sys := &System{
		config:       config,
		audioLogsDir: audioLogsDir,
		decoder:      decode.NewDecoder(config.SampleRate),
		extractor:    ai.NewFeatureExtractor(featConfig),
		engines:      engines,
		builder:      voiceprofile.NewBuilder(builderConfig),
		verifier:     voiceprofile.NewVerifier(verifierConfig),
		sessions:     make(map[string]*Session),
	}

	log.Printf("[Proctor] system initialized: data=%s, sample_rate=%d, threshold=%.2f",
		dataDir, config.SampleRate, config.SimilarityThreshold)
	return sys, nil
}

// Initialize прогревает движок транскрипции. Повторный вызов при
// загруженном движке это дешёвое попадание в кэш.
func (sys *System) Initialize() error {
	if _, err := sys.engines.Engine(); err != nil {
		return opError(FailureEngineUnavailable, "transcription engine failed to load", err)
	}
	return nil
}

// getOrCreateSession возвращает сессию, создавая её при необходимости
func (sys *System) getOrCreateSession(sessionID string) *Session {
	sys.mu.Lock()
	defer sys.mu.Unlock()

	if s, ok := sys.sessions[sessionID]; ok {
		return s
	}
	s := newSession(sessionID, filepath.Join(sys.audioLogsDir, sessionID))
	sys.sessions[sessionID] = s
	return s
}

// getSession возвращает существующую сессию
func (sys *System) getSession(sessionID string) (*Session, error) {
	sys.mu.RLock()
	defer sys.mu.RUnlock()

	s, ok := sys.sessions[sessionID]
	if !ok {
		return nil, opError(FailureSessionNotFound, fmt.Sprintf("session %s not found", sessionID), nil)
	}
	return s, nil
}

// StartCalibration начинает калибровку голоса: сбрасывает накопленные
// образцы и профиль, создаёт директорию сессии
func (sys *System) StartCalibration(sessionID string) (*CalibrationStart, error) {
	if !sys.engines.IsLoaded() {
		return nil, opError(FailureEngineUnavailable, "Система не инициализирована", nil)
	}

	s := sys.getOrCreateSession(sessionID)

	s.mu.Lock()
	s.reset()
	s.state = StateCalibrating
	s.mu.Unlock()

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	log.Printf("[Proctor] calibration started: session=%s", sessionID)
	return &CalibrationStart{
		SessionID:         sessionID,
		Message:           "Калибровка начата. Говорите чётко и спокойно указанную фразу.",
		CalibrationPhrase: "Меня зовут [Ваше имя], я прохожу собеседование. Это моя калибровочная фраза для системы голосового прокторинга. Я говорю естественным голосом.",
		Duration:          sys.config.CalibrationDuration,
		MinSamples:        sys.config.MinCalibrationSamples,
		Instructions: []string{
			"Говорите своим обычным голосом",
			"Не шепчите и не кричите",
			"Повторите фразу 2-3 раза чётко",
			"Избегайте фонового шума",
		},
	}, nil
}

// decodeAudio декодирует сырые байты и проверяет минимальную длительность
func (sys *System) decodeAudio(ctx context.Context, audioData []byte, minDuration float64) ([]float32, float64, error) {
	samples := sys.decoder.Decode(ctx, audioData)
	if len(samples) == 0 {
		return nil, 0, opError(FailureDecode, "empty or undecodable audio data", nil)
	}

	duration := float64(len(samples)) / float64(sys.config.SampleRate)
	if duration < minDuration {
		return nil, duration, opError(FailureSampleTooShort,
			fmt.Sprintf("audio fragment too short: %.1fs (minimum %.1fs)", duration, minDuration), nil)
	}
	return samples, duration, nil
}

// AddCalibrationSample добавляет калибровочный образец: декодирует аудио,
// извлекает признаки и транскрибирует. Образец принимается только при
// успешной транскрипции.
func (sys *System) AddCalibrationSample(ctx context.Context, sessionID string, audioData []byte) (*SampleProgress, error) {
	s, err := sys.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if s.State() != StateCalibrating {
		return nil, opError(FailureInvalidState,
			fmt.Sprintf("session is %s, expected %s", s.State(), StateCalibrating), nil)
	}

	samples, duration, err := sys.decodeAudio(ctx, audioData, sys.config.MinSampleDuration)
	if err != nil {
		return nil, err
	}

	features := sys.extractor.Extract(samples)
	if features == nil {
		return nil, opError(FailureFeatureExtraction, "failed to extract voice features", nil)
	}

	transcription, err := sys.engines.Transcribe(ctx, samples)
	if err != nil {
		return nil, opError(FailureEngineUnavailable, "transcription engine failed", err)
	}
	if !transcription.Success {
		return nil, opError(FailureTranscription, transcription.Reason, nil)
	}

	s.mu.Lock()
	sample := calibrationSample{
		Timestamp:   time.Now(),
		AudioLength: duration,
		Features:    features,
		Text:        transcription.Text,
		Confidence:  transcription.Confidence,
		SampleID:    len(s.samples),
	}
	s.samples = append(s.samples, sample)
	collected := len(s.samples)
	s.mu.Unlock()

	audioPath := filepath.Join(s.Dir, fmt.Sprintf("calibration_sample_%02d.wav", collected))
	sys.saveArtifact(audioPath, samples)

	log.Printf("[Proctor] calibration sample #%d: %q (%.1fs, confidence=%.2f)",
		collected, truncate(transcription.Text, 50), duration, transcription.Confidence)

	progress := collected * 100 / sys.config.MinCalibrationSamples
	if progress > 100 {
		progress = 100
	}
	return &SampleProgress{
		SamplesCollected:     collected,
		MinRequired:          sys.config.MinCalibrationSamples,
		ProgressPercent:      progress,
		CanFinishCalibration: collected >= sys.config.MinCalibrationSamples,
		Transcription:        transcription.Text,
		AudioLength:          duration,
		Confidence:           transcription.Confidence,
		ProcessingTime:       transcription.ProcessingTime.Seconds(),
	}, nil
}

// FinishCalibration строит голосовой профиль из накопленных образцов
// и переводит сессию в откалиброванное состояние
func (sys *System) FinishCalibration(sessionID string) (*CalibrationSummary, error) {
	s, err := sys.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if s.State() != StateCalibrating {
		return nil, opError(FailureInvalidState,
			fmt.Sprintf("session is %s, expected %s", s.State(), StateCalibrating), nil)
	}

	s.mu.Lock()
	profileSamples := make([]voiceprofile.Sample, len(s.samples))
	var confidenceSum float64
	for i, smp := range s.samples {
		profileSamples[i] = voiceprofile.Sample{
			Features:   smp.Features,
			Confidence: smp.Confidence,
		}
		confidenceSum += smp.Confidence
	}
	avgConfidence := 0.0
	if len(s.samples) > 0 {
		avgConfidence = confidenceSum / float64(len(s.samples))
	}
	s.mu.Unlock()

	profile, err := sys.builder.Build(sessionID, profileSamples)
	if err != nil {
		var insufficient *voiceprofile.ErrInsufficientSamples
		if errors.As(err, &insufficient) {
			return nil, opError(FailureInsufficientSamples, err.Error(), err)
		}
		return nil, opError(FailureFeatureExtraction, "failed to build voice profile", err)
	}

	if err := voiceprofile.SaveProfile(s.Dir, profile); err != nil {
		log.Printf("[Proctor] failed to persist voice profile: %v", err)
	}

	s.mu.Lock()
	s.profile = profile
	s.state = StateCalibrated
	s.samples = nil // образцы больше не нужны, профиль построен
	s.mu.Unlock()

	log.Printf("[Proctor] calibration finished: session=%s, samples=%d, quality=%.2f",
		sessionID, profile.NumSamples, profile.QualityScore)

	return &CalibrationSummary{
		Message:       "Калибровка завершена! Голосовой профиль создан успешно.",
		SamplesUsed:   profile.NumSamples,
		GoodSamples:   profile.GoodSamples,
		FeatureDim:    profile.FeatureDimension,
		QualityScore:  profile.QualityScore,
		AvgConfidence: avgConfidence,
		CreatedAt:     profile.CreatedAt,
	}, nil
}

// AnalyzeSpeech анализирует фрагмент речи: транскрибирует и проверяет,
// говорит ли кандидат из профиля
func (sys *System) AnalyzeSpeech(ctx context.Context, sessionID string, audioData []byte) (*Analysis, error) {
	s, err := sys.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if s.State() != StateCalibrated {
		return nil, opError(FailureInvalidState, "system is not calibrated", nil)
	}

	samples, duration, err := sys.decodeAudio(ctx, audioData, 0)
	if err != nil {
		return nil, err
	}

	transcription, err := sys.engines.Transcribe(ctx, samples)
	if err != nil {
		return nil, opError(FailureEngineUnavailable, "transcription engine failed", err)
	}

	// Неизвлечённые признаки дают автоматический отказ верификации,
	// транскрипция при этом возвращается как есть
	features := sys.extractor.Extract(samples)
	speaker, err := sys.verifier.Verify(s.Profile(), features)
	if err != nil {
		return nil, opError(FailureVerification, "speaker verification failed", err)
	}

	s.mu.Lock()
	analysis := Analysis{
		Timestamp:     time.Now(),
		Transcription: transcription,
		Speaker:       speaker,
		AudioLength:   duration,
		SessionID:     sessionID,
		AnalysisID:    len(s.history) + 1,
	}
	s.appendHistory(analysis, sys.config.HistoryLimit)
	s.mu.Unlock()

	timestamp := time.Now().Format("150405.000")
	audioPath := filepath.Join(s.Dir, "analysis_"+strings.Replace(timestamp, ".", "_", 1)+".wav")
	sys.saveArtifactAsync(audioPath, samples)

	status := "IMPOSTOR"
	if speaker.IsCandidate {
		status = "CANDIDATE"
	}
	log.Printf("[Proctor] %s (%.1f%%) [%.1fs] - %q",
		status, speaker.Confidence*100, transcription.ProcessingTime.Seconds(),
		truncate(transcription.Text, 100))

	return &analysis, nil
}

// Status возвращает состояние сессии
func (sys *System) Status(sessionID string) (*Status, error) {
	s, err := sys.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quality := 0.0
	if s.profile != nil {
		quality = s.profile.QualityScore
	}
	return &Status{
		SessionID:           sessionID,
		State:               s.state,
		CalibrationSamples:  len(s.samples),
		AnalysisCount:       len(s.history),
		VoiceProfileQuality: quality,
	}, nil
}

// Logs возвращает журнал сессии: профиль, аудио файлы и хвост истории
func (sys *System) Logs(sessionID string) (*SessionLogs, error) {
	s, err := sys.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, opError(FailureSessionNotFound, "session directory not found", err)
	}

	var calibrationFiles, analysisFiles []string
	totalAudio := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".wav") {
			continue
		}
		totalAudio++
		switch {
		case strings.Contains(name, "calibration"):
			calibrationFiles = append(calibrationFiles, name)
		case strings.Contains(name, "analysis"):
			analysisFiles = append(analysisFiles, name)
		}
	}
	sort.Strings(calibrationFiles)
	sort.Strings(analysisFiles)

	profile, _ := voiceprofile.LoadProfile(s.Dir)

	s.mu.Lock()
	defer s.mu.Unlock()

	totalSamples := len(s.samples)
	if s.profile != nil {
		totalSamples = s.profile.NumSamples
	}
	return &SessionLogs{
		SessionID:        sessionID,
		VoiceProfile:     profile,
		CalibrationFiles: calibrationFiles,
		AnalysisFiles:    analysisFiles,
		TotalAudioFiles:  totalAudio,
		AnalysisHistory:  s.historyTail(sys.config.HistoryLimit),
		State:            s.state,
		TotalSamples:     totalSamples,
	}, nil
}

// Reset сбрасывает сессию в исходное состояние
func (sys *System) Reset(sessionID string) error {
	s, err := sys.getSession(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.reset()
	s.mu.Unlock()

	log.Printf("[Proctor] session reset: %s", sessionID)
	return nil
}

// Stats возвращает статистику системы
func (sys *System) Stats() SystemStats {
	sys.mu.RLock()
	defer sys.mu.RUnlock()

	return SystemStats{
		EngineLoaded: sys.engines.IsLoaded(),
		SessionCount: len(sys.sessions),
		Config:       sys.config,
	}
}

// truncate обрезает строку до n рун
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
