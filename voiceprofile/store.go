package voiceprofile

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

const (
	profileFileName = "voice_profile.json"
	scalerFileName  = "voice_scaler.json"
)

// scalerFile отдельный файл с параметрами нормализации,
// чтобы профиль можно было применять к новым признакам без полной загрузки
type scalerFile struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// SaveProfile сохраняет профиль и scaler в директорию сессии (атомарно)
func SaveProfile(sessionDir string, profile *VoiceProfile) error {
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	if err := writeJSONAtomic(filepath.Join(sessionDir, profileFileName), profile); err != nil {
		return fmt.Errorf("failed to save voice profile: %w", err)
	}

	scaler := scalerFile{Mean: profile.ScalerMean, Scale: profile.ScalerScale}
	if err := writeJSONAtomic(filepath.Join(sessionDir, scalerFileName), &scaler); err != nil {
		return fmt.Errorf("failed to save voice scaler: %w", err)
	}

	log.Printf("[VoiceProfile] saved: %s", filepath.Join(sessionDir, profileFileName))
	return nil
}

// LoadProfile загружает профиль из директории сессии
func LoadProfile(sessionDir string) (*VoiceProfile, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, profileFileName))
	if err != nil {
		return nil, err
	}

	var profile VoiceProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse voice profile: %w", err)
	}
	return &profile, nil
}

// writeJSONAtomic пишет JSON через временный файл с переименованием
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
