// Package models предоставляет управление моделями распознавания речи
package models

// EngineType тип движка, которому принадлежит модель
type EngineType string

const (
	EngineTypeWhisper EngineType = "whisper" // Whisper ONNX (sherpa-onnx)
	EngineTypeVAD     EngineType = "vad"     // Voice Activity Detection
)

// ModelInfo информация о модели
type ModelInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Engine      EngineType `json:"engine"`
	Size        string     `json:"size"`
	SizeBytes   int64      `json:"sizeBytes"`
	Description string     `json:"description"`
	Languages   []string   `json:"languages"`
	Speed       string     `json:"speed"`
	Recommended bool       `json:"recommended,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`

	// Whisper модели распространяются архивом tar.bz2 с тремя файлами
	IsArchive   bool   `json:"isArchive,omitempty"`
	EncoderFile string `json:"encoderFile,omitempty"` // имя файла внутри архива
	DecoderFile string `json:"decoderFile,omitempty"`
	TokensFile  string `json:"tokensFile,omitempty"`
}

// ModelStatus статус модели на устройстве
type ModelStatus string

const (
	ModelStatusNotDownloaded ModelStatus = "not_downloaded"
	ModelStatusDownloading   ModelStatus = "downloading"
	ModelStatusDownloaded    ModelStatus = "downloaded"
	ModelStatusActive        ModelStatus = "active"
	ModelStatusError         ModelStatus = "error"
)

// ModelState состояние модели с информацией
type ModelState struct {
	ModelInfo
	Status   ModelStatus `json:"status"`
	Progress float64     `json:"progress,omitempty"` // 0-100
	Error    string      `json:"error,omitempty"`
	Path     string      `json:"path,omitempty"`
}

// Registry реестр доступных моделей
var Registry = []ModelInfo{
	// ===== Whisper ONNX модели (sherpa-onnx) =====
	{
		ID:          "whisper-tiny",
		Name:        "Whisper Tiny",
		Engine:      EngineTypeWhisper,
		Size:        "112 MB",
		SizeBytes:   112_000_000,
		Description: "Самая быстрая модель, базовое качество",
		Languages:   []string{"multi"},
		Speed:       "~10x",
		IsArchive:   true,
		DownloadURL: "https://github.com/k2-fsa/sherpa-onnx/releases/download/asr-models/sherpa-onnx-whisper-tiny.tar.bz2",
		EncoderFile: "tiny-encoder.int8.onnx",
		DecoderFile: "tiny-decoder.int8.onnx",
		TokensFile:  "tiny-tokens.txt",
	},
	{
		ID:          "whisper-base",
		Name:        "Whisper Base",
		Engine:      EngineTypeWhisper,
		Size:        "198 MB",
		SizeBytes:   198_000_000,
		Description: "Хороший баланс скорости и качества",
		Languages:   []string{"multi"},
		Speed:       "~7x",
		Recommended: true,
		IsArchive:   true,
		DownloadURL: "https://github.com/k2-fsa/sherpa-onnx/releases/download/asr-models/sherpa-onnx-whisper-base.tar.bz2",
		EncoderFile: "base-encoder.int8.onnx",
		DecoderFile: "base-decoder.int8.onnx",
		TokensFile:  "base-tokens.txt",
	},
	{
		ID:          "whisper-small",
		Name:        "Whisper Small",
		Engine:      EngineTypeWhisper,
		Size:        "610 MB",
		SizeBytes:   610_000_000,
		Description: "Хорошее качество распознавания",
		Languages:   []string{"multi"},
		Speed:       "~4x",
		IsArchive:   true,
		DownloadURL: "https://github.com/k2-fsa/sherpa-onnx/releases/download/asr-models/sherpa-onnx-whisper-small.tar.bz2",
		EncoderFile: "small-encoder.int8.onnx",
		DecoderFile: "small-decoder.int8.onnx",
		TokensFile:  "small-tokens.txt",
	},

	// ===== Модели VAD (Voice Activity Detection) =====
	{
		ID:          "silero-vad-v5",
		Name:        "Silero VAD v5",
		Engine:      EngineTypeVAD,
		Size:        "2.2 MB",
		SizeBytes:   2_327_524,
		Description: "Enterprise-grade Voice Activity Detector (Silero)",
		Languages:   []string{"multi"},
		Speed:       "~1000x",
		Recommended: true,
		DownloadURL: "https://github.com/snakers4/silero-vad/raw/master/src/silero_vad/data/silero_vad.onnx",
	},
}

// GetModelsByEngine возвращает модели для определённого движка
func GetModelsByEngine(engine EngineType) []ModelInfo {
	var result []ModelInfo
	for _, m := range Registry {
		if m.Engine == engine {
			result = append(result, m)
		}
	}
	return result
}

// GetModelByID возвращает модель по ID
func GetModelByID(id string) *ModelInfo {
	for _, m := range Registry {
		if m.ID == id {
			return &m
		}
	}
	return nil
}

// GetRecommendedModels возвращает рекомендуемые модели
func GetRecommendedModels() []ModelInfo {
	var result []ModelInfo
	for _, m := range Registry {
		if m.Recommended {
			result = append(result, m)
		}
	}
	return result
}
