package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config параметры запуска бэкенда
type Config struct {
	DataDir     string
	ModelsDir   string
	Port        string
	GRPCAddr    string
	ModelID     string
	Language    string
	OpenAIKey   string
	OpenAIModel string
	ExportMP3   bool
}

func Load() *Config {
	// .env не обязателен, переменные окружения имеют приоритет ниже флагов
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Config] .env not loaded: %v", err)
	}

	dataDir := flag.String("data", "data/sessions", "Directory for session data")
	modelsDir := flag.String("models", "", "Directory for downloaded models (default: dataDir/../models)")
	port := flag.String("port", "8080", "Server port")
	grpcAddr := flag.String("grpc", "", "gRPC listen address (unix:/path, npipe:\\\\.\\pipe\\name or host:port)")
	modelID := flag.String("model", "whisper-base", "Active transcription model ID")
	language := flag.String("language", "ru", "Transcription language")
	openaiModel := flag.String("openai-model", "", "OpenAI model for HR agents (default gpt-4o)")
	exportMP3 := flag.Bool("mp3", false, "Additionally export audio artifacts as MP3")
	flag.Parse()

	finalModelsDir := *modelsDir
	if finalModelsDir == "" {
		finalModelsDir = filepath.Join(filepath.Dir(*dataDir), "models")
	}

	return &Config{
		DataDir:     *dataDir,
		ModelsDir:   finalModelsDir,
		Port:        *port,
		GRPCAddr:    *grpcAddr,
		ModelID:     *modelID,
		Language:    *language,
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: *openaiModel,
		ExportMP3:   *exportMP3,
	}
}
