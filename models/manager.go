package models

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// ProgressCallback функция обратного вызова для прогресса
type ProgressCallback func(modelID string, progress float64, status ModelStatus, err error)

// WhisperPaths пути к файлам Whisper модели
type WhisperPaths struct {
	Encoder string
	Decoder string
	Tokens  string
}

// Manager менеджер моделей
type Manager struct {
	modelsDir   string
	activeModel string
	downloads   map[string]context.CancelFunc // Активные загрузки
	mu          sync.RWMutex
	onProgress  ProgressCallback
}

// NewManager создаёт новый менеджер моделей
func NewManager(modelsDir string) (*Manager, error) {
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	return &Manager{
		modelsDir: modelsDir,
		downloads: make(map[string]context.CancelFunc),
	}, nil
}

// SetProgressCallback устанавливает callback для прогресса
func (m *Manager) SetProgressCallback(cb ProgressCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress = cb
}

// GetModelsDir возвращает путь к директории моделей
func (m *Manager) GetModelsDir() string {
	return m.modelsDir
}

// GetModelPath возвращает путь к однофайловой модели (VAD)
func (m *Manager) GetModelPath(modelID string) string {
	info := GetModelByID(modelID)
	if info == nil {
		return ""
	}

	if info.IsArchive {
		return filepath.Join(m.modelsDir, modelID)
	}
	return filepath.Join(m.modelsDir, modelID+".onnx")
}

// GetWhisperPaths возвращает пути к файлам Whisper модели.
// Архив распаковывается в поддиректорию с именем модели.
func (m *Manager) GetWhisperPaths(modelID string) (*WhisperPaths, error) {
	info := GetModelByID(modelID)
	if info == nil {
		return nil, fmt.Errorf("unknown model: %s", modelID)
	}
	if info.Engine != EngineTypeWhisper {
		return nil, fmt.Errorf("model %s is not a whisper model", modelID)
	}

	extractDir := filepath.Join(m.modelsDir, modelID)

	// Архивы sherpa-onnx содержат вложенную директорию с именем архива,
	// ищем файлы и в корне, и на один уровень глубже
	find := func(name string) (string, error) {
		direct := filepath.Join(extractDir, name)
		if _, err := os.Stat(direct); err == nil {
			return direct, nil
		}
		matches, _ := filepath.Glob(filepath.Join(extractDir, "*", name))
		if len(matches) > 0 {
			return matches[0], nil
		}
		return "", fmt.Errorf("model file not found: %s", name)
	}

	encoder, err := find(info.EncoderFile)
	if err != nil {
		return nil, err
	}
	decoder, err := find(info.DecoderFile)
	if err != nil {
		return nil, err
	}
	tokens, err := find(info.TokensFile)
	if err != nil {
		return nil, err
	}

	return &WhisperPaths{Encoder: encoder, Decoder: decoder, Tokens: tokens}, nil
}

// IsModelDownloaded проверяет, скачана ли модель
func (m *Manager) IsModelDownloaded(modelID string) bool {
	info := GetModelByID(modelID)
	if info == nil {
		return false
	}

	if info.Engine == EngineTypeWhisper {
		_, err := m.GetWhisperPaths(modelID)
		return err == nil
	}

	modelPath := m.GetModelPath(modelID)
	if modelPath == "" {
		return false
	}

	stat, err := os.Stat(modelPath)
	if err != nil {
		return false
	}
	// Частично скачанный файл не считается моделью
	return stat.Size() >= 1_000_000 || stat.Size() >= info.SizeBytes
}

// GetActiveModel возвращает ID активной модели
func (m *Manager) GetActiveModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeModel
}

// SetActiveModel устанавливает активную модель
func (m *Manager) SetActiveModel(modelID string) error {
	if !m.IsModelDownloaded(modelID) {
		return fmt.Errorf("model %s is not downloaded", modelID)
	}

	m.mu.Lock()
	m.activeModel = modelID
	m.mu.Unlock()

	log.Printf("Active model set to: %s", modelID)
	return nil
}

// GetAllModelsState возвращает состояние всех моделей
func (m *Manager) GetAllModelsState() []ModelState {
	m.mu.RLock()
	activeModel := m.activeModel
	downloads := make(map[string]bool)
	for id := range m.downloads {
		downloads[id] = true
	}
	m.mu.RUnlock()

	states := make([]ModelState, len(Registry))
	for i, info := range Registry {
		state := ModelState{
			ModelInfo: info,
			Path:      m.GetModelPath(info.ID),
		}

		if downloads[info.ID] {
			state.Status = ModelStatusDownloading
		} else if m.IsModelDownloaded(info.ID) {
			if info.ID == activeModel {
				state.Status = ModelStatusActive
			} else {
				state.Status = ModelStatusDownloaded
			}
		} else {
			state.Status = ModelStatusNotDownloaded
		}

		states[i] = state
	}

	return states
}

// DownloadModel скачивает модель
func (m *Manager) DownloadModel(modelID string) error {
	info := GetModelByID(modelID)
	if info == nil {
		return fmt.Errorf("unknown model: %s", modelID)
	}

	m.mu.Lock()
	if _, exists := m.downloads[modelID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("model %s is already downloading", modelID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.downloads[modelID] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.downloads, modelID)
			m.mu.Unlock()
		}()

		progressCb := func(progress float64) {
			m.notifyProgress(modelID, progress, ModelStatusDownloading, nil)
		}

		var err error
		if info.IsArchive {
			extractDir := filepath.Join(m.modelsDir, modelID)
			err = DownloadAndExtractTarBz2(ctx, info.DownloadURL, extractDir, info.SizeBytes, progressCb)
		} else {
			err = DownloadFile(ctx, info.DownloadURL, m.GetModelPath(modelID), info.SizeBytes, progressCb)
		}

		if err != nil {
			if ctx.Err() == context.Canceled {
				log.Printf("Download cancelled for model: %s", modelID)
				m.notifyProgress(modelID, 0, ModelStatusNotDownloaded, nil)
				m.cleanupPartialDownload(modelID)
			} else {
				log.Printf("Download failed for model %s: %v", modelID, err)
				m.notifyProgress(modelID, 0, ModelStatusError, err)
			}
			return
		}

		log.Printf("Download completed for model: %s", modelID)
		m.notifyProgress(modelID, 100, ModelStatusDownloaded, nil)
	}()

	return nil
}

// CancelDownload отменяет скачивание модели
func (m *Manager) CancelDownload(modelID string) error {
	m.mu.Lock()
	cancel, exists := m.downloads[modelID]
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("model %s is not downloading", modelID)
	}

	cancel()
	return nil
}

// DeleteModel удаляет скачанную модель
func (m *Manager) DeleteModel(modelID string) error {
	if !m.IsModelDownloaded(modelID) {
		return fmt.Errorf("model %s is not downloaded", modelID)
	}

	// Нельзя удалить активную модель
	m.mu.RLock()
	if m.activeModel == modelID {
		m.mu.RUnlock()
		return fmt.Errorf("cannot delete active model")
	}
	m.mu.RUnlock()

	info := GetModelByID(modelID)
	if info == nil {
		return fmt.Errorf("unknown model: %s", modelID)
	}

	if info.IsArchive {
		extractDir := filepath.Join(m.modelsDir, modelID)
		if err := os.RemoveAll(extractDir); err != nil {
			return fmt.Errorf("failed to delete model directory: %w", err)
		}
	} else {
		if err := os.Remove(m.GetModelPath(modelID)); err != nil {
			return fmt.Errorf("failed to delete model: %w", err)
		}
	}

	log.Printf("Model deleted: %s", modelID)
	return nil
}

// notifyProgress уведомляет о прогрессе
func (m *Manager) notifyProgress(modelID string, progress float64, status ModelStatus, err error) {
	m.mu.RLock()
	cb := m.onProgress
	m.mu.RUnlock()

	if cb != nil {
		cb(modelID, progress, status, err)
	}
}

// cleanupPartialDownload удаляет частично скачанный файл
func (m *Manager) cleanupPartialDownload(modelID string) {
	info := GetModelByID(modelID)
	if info == nil {
		return
	}

	if info.IsArchive {
		os.RemoveAll(filepath.Join(m.modelsDir, modelID))
		return
	}

	modelPath := m.GetModelPath(modelID)
	if modelPath == "" {
		return
	}
	os.Remove(modelPath)
	os.Remove(modelPath + ".tmp")
}

// GetDownloadingModels возвращает список скачиваемых моделей
func (m *Manager) GetDownloadingModels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.downloads))
	for id := range m.downloads {
		result = append(result, id)
	}
	return result
}
