// Package ai предоставляет EngineManager для управления движком транскрипции
package ai

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// EngineFactory создаёт движок транскрипции. Подменяется в тестах.
type EngineFactory func() (TranscriptionEngine, error)

// EngineManager лениво создаёт и кэширует движок транскрипции.
// Загрузка модели дорогая, поэтому движок создаётся один раз при
// первом обращении и переиспользуется всеми сессиями.
type EngineManager struct {
	factory EngineFactory

	engine  TranscriptionEngine
	loadErr error
	loaded  bool
	mu      sync.Mutex
}

// NewEngineManager создаёт менеджер движка
func NewEngineManager(factory EngineFactory) *EngineManager {
	return &EngineManager{factory: factory}
}

// Engine возвращает закэшированный движок, создавая его при первом вызове.
// Неудачная загрузка тоже кэшируется: повторные вызовы возвращают ту же
// ошибку без повторной попытки загрузки.
func (em *EngineManager) Engine() (TranscriptionEngine, error) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.loaded {
		return em.engine, em.loadErr
	}

	log.Printf("[EngineManager] loading transcription engine")
	em.engine, em.loadErr = em.factory()
	em.loaded = true

	if em.loadErr != nil {
		log.Printf("[EngineManager] engine load failed: %v", em.loadErr)
	} else {
		log.Printf("[EngineManager] engine ready")
	}
	return em.engine, em.loadErr
}

// IsLoaded сообщает, загружен ли рабочий движок. Закэшированная
// неудачная загрузка считается незагруженным состоянием.
func (em *EngineManager) IsLoaded() bool {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.loaded && em.loadErr == nil
}

// Transcribe транскрибирует аудио через закэшированный движок
func (em *EngineManager) Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
	engine, err := em.Engine()
	if err != nil {
		return nil, fmt.Errorf("transcription engine unavailable: %w", err)
	}
	return engine.Transcribe(ctx, samples)
}

// Close закрывает движок, если он был создан
func (em *EngineManager) Close() {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.engine != nil {
		if err := em.engine.Close(); err != nil {
			log.Printf("[EngineManager] engine close failed: %v", err)
		}
		em.engine = nil
	}
	em.loaded = false
	em.loadErr = nil
}
