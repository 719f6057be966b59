package proctor

import (
	"sync"
	"time"

	"hrproctor/voiceprofile"
)

// calibrationSample накопленный образец калибровки
type calibrationSample struct {
	Timestamp   time.Time `json:"timestamp"`
	AudioLength float64   `json:"audio_length"`
	Features    []float64 `json:"features"`
	Text        string    `json:"text"`
	Confidence  float64   `json:"confidence"`
	SampleID    int       `json:"sample_id"`
}

// Session сессия прокторинга одного кандидата
type Session struct {
	ID      string
	Dir     string
	Created time.Time

	mu      sync.Mutex
	state   State
	samples []calibrationSample
	profile *voiceprofile.VoiceProfile
	history []Analysis
}

func newSession(id, dir string) *Session {
	return &Session{
		ID:      id,
		Dir:     dir,
		Created: time.Now(),
		state:   StateUncalibrated,
	}
}

// State возвращает текущее состояние сессии
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Profile возвращает голосовой профиль (nil до завершения калибровки)
func (s *Session) Profile() *voiceprofile.VoiceProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// appendHistory добавляет запись анализа, ограничивая размер истории.
// Хвост истории отдаётся наружу, поэтому хранится с запасом в два лимита.
func (s *Session) appendHistory(a Analysis, limit int) {
	s.history = append(s.history, a)
	if len(s.history) > limit*2 {
		s.history = s.history[len(s.history)-limit:]
	}
}

// historyTail возвращает копию последних n записей истории
func (s *Session) historyTail(n int) []Analysis {
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	tail := make([]Analysis, len(s.history)-start)
	copy(tail, s.history[start:])
	return tail
}

// reset очищает калибровку и историю, возвращая сессию в исходное состояние
func (s *Session) reset() {
	s.state = StateUncalibrated
	s.samples = nil
	s.profile = nil
	s.history = nil
}
