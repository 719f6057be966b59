package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"hrproctor/ai"
	"hrproctor/hr"
	"hrproctor/internal/config"
	"hrproctor/models"
	"hrproctor/proctor"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	Config      *config.Config
	System      *proctor.System
	EngineMgr   *ai.EngineManager
	ModelMgr    *models.Manager
	Professions *hr.Store
	Agents      *hr.Agents

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func NewServer(
	cfg *config.Config,
	system *proctor.System,
	engMgr *ai.EngineManager,
	modMgr *models.Manager,
	professions *hr.Store,
	agents *hr.Agents,
) *Server {
	s := &Server{
		Config:      cfg,
		System:      system,
		EngineMgr:   engMgr,
		ModelMgr:    modMgr,
		Professions: professions,
		Agents:      agents,
		clients:     make(map[*websocket.Conn]bool),
	}
	s.setupCallbacks()
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Post("/initialize", s.handleInitialize)
		r.Get("/stats", s.handleStats)
		r.Get("/models", s.handleModels)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/calibration/start", s.handleStartCalibration)
			r.Post("/calibration/sample", s.handleAddSample)
			r.Post("/calibration/finish", s.handleFinishCalibration)
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/status", s.handleStatus)
			r.Get("/logs", s.handleLogs)
			r.Post("/reset", s.handleReset)
		})

		r.Route("/professions", func(r chi.Router) {
			r.Post("/", s.handleCreateProfession)
			r.Get("/", s.handleListProfessions)
			r.Get("/{id}", s.handleGetProfession)
			r.Post("/{id}/tags", s.handleGenerateTags)
			r.Post("/{id}/approve", s.handleApproveProfession)
			r.Post("/{id}/return", s.handleReturnProfession)
			r.Post("/{id}/questions", s.handleGenerateQuestions)
			r.Post("/{id}/activate", s.handleActivateProfession)
		})
	})

	return r
}

func (s *Server) Start() {
	go s.startGRPCServer()

	log.Printf("Backend listening on :%s", s.Config.Port)
	if err := http.ListenAndServe(":"+s.Config.Port, s.Router()); err != nil {
		log.Fatal("ListenAndServe:", err)
	}
}

func (s *Server) setupCallbacks() {
	s.ModelMgr.SetProgressCallback(func(modelID string, progress float64, status models.ModelStatus, err error) {
		errStr := ""
		if err != nil {
			errStr = err.Error()
		}
		s.broadcast(Message{
			Type:     "model_progress",
			ModelID:  modelID,
			Progress: progress,
			Data:     string(status),
			Error:    errStr,
		})
	})
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 {
		return
	}

	// Глобальная блокировка сериализует записи во все соединения
	for conn := range s.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Write error: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// --- HTTP: прокторинг ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeOpError переводит категорию отказа в HTTP статус
func writeOpError(w http.ResponseWriter, err error) {
	var op *proctor.OpError
	if !errors.As(err, &op) {
		writeJSON(w, http.StatusInternalServerError, Message{Type: "error", Error: err.Error()})
		return
	}
	code := http.StatusInternalServerError
	switch op.Kind {
	case proctor.FailureSessionNotFound:
		code = http.StatusNotFound
	case proctor.FailureInvalidState:
		code = http.StatusConflict
	case proctor.FailureDecode, proctor.FailureSampleTooShort, proctor.FailureInsufficientSamples:
		code = http.StatusBadRequest
	case proctor.FailureEngineUnavailable:
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, Message{Type: "error", Data: string(op.Kind), Error: err.Error()})
}

func readAudioBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	// JSON обёртка {"audio": "<base64>"} либо сырые байты
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return decodeBase64Audio(msg.Audio)
	}
	return data, nil
}

func decodeBase64Audio(s string) ([]byte, error) {
	// data:audio/webm;base64,... из браузера
	if i := strings.IndexByte(s, ','); i >= 0 && strings.Contains(s[:i], "base64") {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func (s *Server) handleStartCalibration(w http.ResponseWriter, r *http.Request) {
	result, err := s.System.StartCalibration(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAddSample(w http.ResponseWriter, r *http.Request) {
	audio, err := readAudioBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Message{Type: "error", Error: err.Error()})
		return
	}
	result, err := s.System.AddCalibrationSample(r.Context(), chi.URLParam(r, "sessionID"), audio)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFinishCalibration(w http.ResponseWriter, r *http.Request) {
	result, err := s.System.FinishCalibration(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	audio, err := readAudioBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Message{Type: "error", Error: err.Error()})
		return
	}
	result, err := s.System.AnalyzeSpeech(r.Context(), chi.URLParam(r, "sessionID"), audio)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.System.Status(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	result, err := s.System.Logs(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.System.Reset(chi.URLParam(r, "sessionID")); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Message{Type: "session_reset", SessionID: chi.URLParam(r, "sessionID")})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if err := s.System.Initialize(); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Message{Type: "initialized"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.System.Stats()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ModelMgr.GetAllModelsState())
}

// --- HTTP: профессии ---

func (s *Server) handleCreateProfession(w http.ResponseWriter, r *http.Request) {
	var req Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Message{Type: "error", Error: err.Error()})
		return
	}
	p, err := s.Professions.Create(hr.Role(req.Role), req.Data, req.RealName, req.Specialization, req.Department)
	if err != nil {
		writeJSON(w, http.StatusForbidden, Message{Type: "error", Error: err.Error()})
		return
	}

	// Теги генерируются сразу после создания, отказ агента не блокирует создание
	go s.generateTags(p.ID)

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) generateTags(id string) {
	p, err := s.Professions.Get(id)
	if err != nil {
		return
	}
	tags, err := s.Agents.GenerateTags(context.Background(), p)
	if err != nil {
		log.Printf("[HR] tag generation for %s failed: %v", id, err)
		return
	}
	updated, err := s.Professions.SetTags(id, tags)
	if err != nil {
		log.Printf("[HR] saving tags for %s failed: %v", id, err)
		return
	}
	s.broadcast(Message{Type: "profession_updated", Profession: updated})
}

func (s *Server) handleListProfessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Professions.List())
}

func (s *Server) handleGetProfession(w http.ResponseWriter, r *http.Request) {
	p, err := s.Professions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, Message{Type: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGenerateTags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.Professions.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, Message{Type: "error", Error: err.Error()})
		return
	}
	tags, err := s.Agents.GenerateTags(r.Context(), p)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, Message{Type: "error", Error: err.Error()})
		return
	}
	updated, err := s.Professions.SetTags(id, tags)
	if err != nil {
		writeJSON(w, http.StatusConflict, Message{Type: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleApproveProfession(w http.ResponseWriter, r *http.Request) {
	var req Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Message{Type: "error", Error: err.Error()})
		return
	}
	p, err := s.Professions.Approve(hr.Role(req.Role), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusConflict, Message{Type: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReturnProfession(w http.ResponseWriter, r *http.Request) {
	var req Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Message{Type: "error", Error: err.Error()})
		return
	}
	p, err := s.Professions.ReturnToHR(hr.Role(req.Role), chi.URLParam(r, "id"), req.Comment)
	if err != nil {
		writeJSON(w, http.StatusConflict, Message{Type: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var req Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Message{Type: "error", Error: err.Error()})
		return
	}
	id := chi.URLParam(r, "id")
	p, err := s.Professions.Get(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, Message{Type: "error", Error: err.Error()})
		return
	}
	questions, err := s.Agents.GenerateQuestions(r.Context(), p)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, Message{Type: "error", Error: err.Error()})
		return
	}
	updated, err := s.Professions.SetQuestions(hr.Role(req.Role), id, questions)
	if err != nil {
		writeJSON(w, http.StatusConflict, Message{Type: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleActivateProfession(w http.ResponseWriter, r *http.Request) {
	var req Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Message{Type: "error", Error: err.Error()})
		return
	}
	p, err := s.Professions.Activate(hr.Role(req.Role), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusConflict, Message{Type: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- WebSocket ---

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade:", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			log.Println("Read:", err)
			break
		}
		s.processMessage(func(m Message) {
			if err := conn.WriteJSON(m); err != nil {
				log.Printf("Write error: %v", err)
			}
		}, msg)
	}
}

// processMessage обрабатывает сообщение управления, общий для WebSocket и gRPC
func (s *Server) processMessage(reply func(Message), msg Message) {
	ctx := context.Background()

	switch msg.Type {
	case "initialize":
		if err := s.System.Initialize(); err != nil {
			reply(Message{Type: "error", Error: err.Error()})
			return
		}
		reply(Message{Type: "initialized"})

	case "start_calibration":
		result, err := s.System.StartCalibration(msg.SessionID)
		if err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: err.Error()})
			return
		}
		reply(Message{Type: "calibration_started", SessionID: msg.SessionID, Calibration: result})

	case "add_calibration_sample":
		audio, err := decodeBase64Audio(msg.Audio)
		if err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: "invalid audio payload: " + err.Error()})
			return
		}
		result, err := s.System.AddCalibrationSample(ctx, msg.SessionID, audio)
		if err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: err.Error()})
			return
		}
		reply(Message{Type: "sample_added", SessionID: msg.SessionID, Sample: result})

	case "finish_calibration":
		result, err := s.System.FinishCalibration(msg.SessionID)
		if err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: err.Error()})
			return
		}
		reply(Message{Type: "calibration_finished", SessionID: msg.SessionID, Summary: result})

	case "analyze_speech":
		audio, err := decodeBase64Audio(msg.Audio)
		if err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: "invalid audio payload: " + err.Error()})
			return
		}
		result, err := s.System.AnalyzeSpeech(ctx, msg.SessionID, audio)
		if err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: err.Error()})
			return
		}
		reply(Message{Type: "analysis_result", SessionID: msg.SessionID, Analysis: result})

	case "get_status":
		result, err := s.System.Status(msg.SessionID)
		if err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: err.Error()})
			return
		}
		reply(Message{Type: "session_status", SessionID: msg.SessionID, Status: result})

	case "get_logs":
		result, err := s.System.Logs(msg.SessionID)
		if err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: err.Error()})
			return
		}
		reply(Message{Type: "session_logs", SessionID: msg.SessionID, Logs: result})

	case "reset_session":
		if err := s.System.Reset(msg.SessionID); err != nil {
			reply(Message{Type: "error", SessionID: msg.SessionID, Error: err.Error()})
			return
		}
		reply(Message{Type: "session_reset", SessionID: msg.SessionID})

	case "get_stats":
		stats := s.System.Stats()
		reply(Message{Type: "system_stats", Stats: &stats})

	case "get_models":
		reply(Message{Type: "models_list", Models: s.ModelMgr.GetAllModelsState()})

	case "download_model":
		if msg.ModelID == "" {
			reply(Message{Type: "error", Error: "modelId is required"})
			return
		}
		if err := s.ModelMgr.DownloadModel(msg.ModelID); err != nil {
			reply(Message{Type: "error", Error: err.Error()})
			return
		}
		reply(Message{Type: "download_started", ModelID: msg.ModelID})

	case "cancel_download":
		if msg.ModelID == "" {
			reply(Message{Type: "error", Error: "modelId is required"})
			return
		}
		s.ModelMgr.CancelDownload(msg.ModelID)
		reply(Message{Type: "download_cancelled", ModelID: msg.ModelID})

	case "delete_model":
		if msg.ModelID == "" {
			reply(Message{Type: "error", Error: "modelId is required"})
			return
		}
		s.ModelMgr.DeleteModel(msg.ModelID)
		reply(Message{Type: "model_deleted", ModelID: msg.ModelID})
		reply(Message{Type: "models_list", Models: s.ModelMgr.GetAllModelsState()})

	case "set_active_model":
		if msg.ModelID == "" {
			reply(Message{Type: "error", Error: "modelId is required"})
			return
		}
		if !s.ModelMgr.IsModelDownloaded(msg.ModelID) {
			reply(Message{Type: "error", Error: "model not downloaded"})
			return
		}
		if err := s.ModelMgr.SetActiveModel(msg.ModelID); err != nil {
			reply(Message{Type: "error", Error: err.Error()})
			return
		}
		// Закрываем движок, при следующем обращении он поднимется с новой моделью
		if s.EngineMgr != nil {
			s.EngineMgr.Close()
		}
		reply(Message{Type: "active_model_changed", ModelID: msg.ModelID})
		reply(Message{Type: "models_list", Models: s.ModelMgr.GetAllModelsState()})

	case "get_professions":
		reply(Message{Type: "professions_list", Professions: s.Professions.List()})

	default:
		reply(Message{Type: "error", Error: "unknown message type: " + msg.Type})
	}
}
