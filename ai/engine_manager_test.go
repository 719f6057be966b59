package ai

import (
	"context"
	"errors"
	"testing"
)

type fakeEngine struct {
	closed     bool
	transcribe func(samples []float32) *TranscriptionResult
}

func (f *fakeEngine) Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
	if f.transcribe != nil {
		return f.transcribe(samples), nil
	}
	return &TranscriptionResult{Success: true, Text: "ok"}, nil
}
func (f *fakeEngine) SampleRate() int { return 16000 }
func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func TestEngineManager_LazyLoadOnce(t *testing.T) {
	calls := 0
	em := NewEngineManager(func() (TranscriptionEngine, error) {
		calls++
		return &fakeEngine{}, nil
	})

	if em.IsLoaded() {
		t.Fatal("engine must not load before first use")
	}

	for i := 0; i < 3; i++ {
		if _, err := em.Engine(); err != nil {
			t.Fatalf("Engine(): %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
	if !em.IsLoaded() {
		t.Error("IsLoaded() = false after load")
	}
}

func TestEngineManager_LoadFailureCached(t *testing.T) {
	calls := 0
	em := NewEngineManager(func() (TranscriptionEngine, error) {
		calls++
		return nil, errors.New("model files missing")
	})

	// Отказ загрузки кэшируется: повторные вызовы не перезапускают фабрику
	for i := 0; i < 3; i++ {
		if _, err := em.Engine(); err == nil {
			t.Fatal("expected load error")
		}
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
	if em.IsLoaded() {
		t.Error("IsLoaded() = true after failed load")
	}
}

func TestEngineManager_CloseAllowsReload(t *testing.T) {
	calls := 0
	em := NewEngineManager(func() (TranscriptionEngine, error) {
		calls++
		return &fakeEngine{}, nil
	})

	if _, err := em.Engine(); err != nil {
		t.Fatalf("Engine(): %v", err)
	}
	em.Close()
	if em.IsLoaded() {
		t.Error("IsLoaded() = true after Close")
	}
	if _, err := em.Engine(); err != nil {
		t.Fatalf("Engine() after Close: %v", err)
	}
	if calls != 2 {
		t.Errorf("factory called %d times, want 2", calls)
	}
}

func TestEngineManager_Transcribe(t *testing.T) {
	em := NewEngineManager(func() (TranscriptionEngine, error) {
		return &fakeEngine{transcribe: func(samples []float32) *TranscriptionResult {
			return &TranscriptionResult{Success: true, Text: "привет"}
		}}, nil
	})

	result, err := em.Transcribe(context.Background(), make([]float32, 16000))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "привет" {
		t.Errorf("Text = %q", result.Text)
	}
}

func TestEngineManager_TranscribeUnavailable(t *testing.T) {
	em := NewEngineManager(func() (TranscriptionEngine, error) {
		return nil, errors.New("no model")
	})

	if _, err := em.Transcribe(context.Background(), nil); err == nil {
		t.Fatal("expected error from unavailable engine")
	}
}
