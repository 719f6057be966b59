package main

import (
	"fmt"
	"log"

	"hrproctor/ai"
	"hrproctor/hr"
	"hrproctor/internal/api"
	"hrproctor/internal/config"
	"hrproctor/models"
	"hrproctor/proctor"
)

func main() {
	cfg := config.Load()

	modelMgr, err := models.NewManager(cfg.ModelsDir)
	if err != nil {
		log.Fatalf("Model manager init: %v", err)
	}
	if cfg.ModelID != "" {
		if err := modelMgr.SetActiveModel(cfg.ModelID); err != nil {
			log.Printf("Active model %s: %v", cfg.ModelID, err)
		}
	}

	// Модель резолвится лениво при первом запросе транскрипции,
	// сервер стартует даже без скачанных моделей
	engineMgr := ai.NewEngineManager(func() (ai.TranscriptionEngine, error) {
		modelID := modelMgr.GetActiveModel()
		if modelID == "" {
			return nil, fmt.Errorf("no active transcription model, download one first")
		}
		paths, err := modelMgr.GetWhisperPaths(modelID)
		if err != nil {
			return nil, fmt.Errorf("model %s is not available: %w", modelID, err)
		}

		whisperCfg := ai.DefaultWhisperConfig()
		whisperCfg.EncoderPath = paths.Encoder
		whisperCfg.DecoderPath = paths.Decoder
		whisperCfg.TokensPath = paths.Tokens
		whisperCfg.Language = cfg.Language
		if modelMgr.IsModelDownloaded("silero-vad-v5") {
			whisperCfg.VADPath = modelMgr.GetModelPath("silero-vad-v5")
		}

		return ai.NewWhisperEngine(whisperCfg)
	})
	defer engineMgr.Close()

	proctorCfg := proctor.DefaultConfig()
	proctorCfg.ExportMP3 = cfg.ExportMP3
	system, err := proctor.NewSystem(cfg.DataDir, proctorCfg, engineMgr)
	if err != nil {
		log.Fatalf("Proctoring system init: %v", err)
	}

	store, err := hr.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Profession store init: %v", err)
	}
	agents := hr.NewAgents(cfg.OpenAIKey, cfg.OpenAIModel)

	server := api.NewServer(cfg, system, engineMgr, modelMgr, store, agents)
	server.Start()
}
