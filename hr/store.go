package hr

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// storeFile формат файла profession_records.json
type storeFile struct {
	Version     int          `json:"version"`
	Professions []Profession `json:"profession_records"`
}

const storeVersion = 1

// Store хранилище профессий в JSON файле
type Store struct {
	path string
	data storeFile
	mu   sync.RWMutex
}

// NewStore создаёт хранилище профессий
func NewStore(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "profession_records.json")

	store := &Store{
		path: path,
		data: storeFile{Version: storeVersion},
	}

	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load professions: %w", err)
	}

	log.Printf("[HR] store initialized: %s (%d professions)", path, len(store.data.Professions))
	return store, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &s.data); err != nil {
		return fmt.Errorf("failed to parse profession records: %w", err)
	}
	return nil
}

// saveUnsafe сохраняет без блокировки (вызывать только при удержании lock)
func (s *Store) saveUnsafe() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal professions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Атомарная запись через временный файл
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Create создаёт профессию. Право есть только у HR директора.
func (s *Store) Create(role Role, createdBy, realName, specialization, department string) (*Profession, error) {
	if !CanCreateProfessions(role) {
		return nil, fmt.Errorf("role %s cannot create professions", role)
	}
	if realName == "" {
		return nil, fmt.Errorf("profession name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	p := Profession{
		ID:             uuid.New().String(),
		RealName:       realName,
		Specialization: specialization,
		Department:     department,
		Status:         StatusCreatedByHR,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.data.Professions = append(s.data.Professions, p)

	if err := s.saveUnsafe(); err != nil {
		s.data.Professions = s.data.Professions[:len(s.data.Professions)-1]
		return nil, err
	}

	log.Printf("[HR] profession created: %s (%s)", p.RealName, p.ID[:8])
	return &p, nil
}

// List возвращает копию всех профессий
func (s *Store) List() []Profession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Profession, len(s.data.Professions))
	copy(result, s.data.Professions)
	return result
}

// Get возвращает профессию по ID
func (s *Store) Get(id string) (*Profession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.data.Professions {
		if s.data.Professions[i].ID == id {
			p := s.data.Professions[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("profession not found: %s", id)
}

// update применяет изменение к профессии и сохраняет
func (s *Store) update(id string, apply func(*Profession) error) (*Profession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Professions {
		if s.data.Professions[i].ID != id {
			continue
		}
		backup := s.data.Professions[i]
		if err := apply(&s.data.Professions[i]); err != nil {
			return nil, err
		}
		s.data.Professions[i].UpdatedAt = time.Now()
		if err := s.saveUnsafe(); err != nil {
			s.data.Professions[i] = backup
			return nil, err
		}
		p := s.data.Professions[i]
		return &p, nil
	}
	return nil, fmt.Errorf("profession not found: %s", id)
}

// SetTags записывает сгенерированные теги и переводит профессию
// в статус ожидания утверждения
func (s *Store) SetTags(id string, tags map[string]int) (*Profession, error) {
	return s.update(id, func(p *Profession) error {
		if !CanTransition(p.Status, StatusTagsGenerated) {
			return fmt.Errorf("cannot set tags in status %s", p.Status)
		}
		p.Tags = tags
		p.Status = StatusTagsGenerated
		p.ReturnComment = ""
		return nil
	})
}

// Approve утверждает профессию. Право есть у начальника отдела.
func (s *Store) Approve(role Role, id string) (*Profession, error) {
	if !CanApproveProfessions(role) {
		return nil, fmt.Errorf("role %s cannot approve professions", role)
	}
	return s.update(id, func(p *Profession) error {
		if !CanTransition(p.Status, StatusApprovedByHead) {
			return fmt.Errorf("cannot approve profession in status %s", p.Status)
		}
		p.Status = StatusApprovedByHead
		return nil
	})
}

// ReturnToHR возвращает профессию HR на доработку с комментарием
func (s *Store) ReturnToHR(role Role, id, comment string) (*Profession, error) {
	if !CanApproveProfessions(role) {
		return nil, fmt.Errorf("role %s cannot return professions", role)
	}
	return s.update(id, func(p *Profession) error {
		if !CanTransition(p.Status, StatusReturnedToHR) {
			return fmt.Errorf("cannot return profession in status %s", p.Status)
		}
		p.Status = StatusReturnedToHR
		p.ReturnComment = comment
		return nil
	})
}

// SetQuestions записывает сгенерированные вопросы
func (s *Store) SetQuestions(role Role, id string, questions []Question) (*Profession, error) {
	if !CanManageQuestions(role) {
		return nil, fmt.Errorf("role %s cannot manage questions", role)
	}
	return s.update(id, func(p *Profession) error {
		if !CanTransition(p.Status, StatusQuestionsGenerated) {
			return fmt.Errorf("cannot set questions in status %s", p.Status)
		}
		p.Questions = questions
		p.Status = StatusQuestionsGenerated
		return nil
	})
}

// Activate делает профессию доступной для использования
func (s *Store) Activate(role Role, id string) (*Profession, error) {
	if !CanManageQuestions(role) {
		return nil, fmt.Errorf("role %s cannot activate professions", role)
	}
	return s.update(id, func(p *Profession) error {
		if !CanTransition(p.Status, StatusActive) {
			return fmt.Errorf("cannot activate profession in status %s", p.Status)
		}
		p.Status = StatusActive
		return nil
	})
}

// Count возвращает количество профессий
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Professions)
}
