package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hrproctor/ai"
	"hrproctor/hr"
	"hrproctor/internal/config"
	"hrproctor/models"
	"hrproctor/proctor"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type stubEngine struct{}

func (stubEngine) Transcribe(ctx context.Context, samples []float32) (*ai.TranscriptionResult, error) {
	return &ai.TranscriptionResult{Success: true, Text: "проверка связи", Confidence: 0.9}, nil
}
func (stubEngine) SampleRate() int { return 16000 }
func (stubEngine) Close() error    { return nil }

// jsonClient is a lightweight gRPC JSON client for the Control stream.
type jsonClient struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
}

func newJSONClient(t *testing.T, addr string) *jsonClient {
	t.Helper()

	conn, err := grpc.Dial(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			// Support unix:/path format
			if strings.HasPrefix(addr, "unix:") {
				return net.DialTimeout("unix", strings.TrimPrefix(addr, "unix:"), 3*time.Second)
			}
			return net.DialTimeout("tcp", addr, 3*time.Second)
		}),
	)
	if err != nil {
		t.Fatalf("dial grpc: %v", err)
	}

	stream, err := conn.NewStream(context.Background(), &_Control_serviceDesc.Streams[0], "/hrproctor.Control/Stream")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	return &jsonClient{conn: conn, stream: stream}
}

func (c *jsonClient) send(msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	// Send as generic interface{} so ForceCodec(jsonCodec{}) kicks in on server
	var any interface{}
	if err := json.Unmarshal(raw, &any); err != nil {
		return err
	}
	return c.stream.SendMsg(any)
}

func (c *jsonClient) recv(timeout time.Duration) (Message, error) {
	var msg Message
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	recvDone := make(chan error, 1)
	go func() { recvDone <- c.stream.RecvMsg(&msg) }()
	select {
	case err := <-recvDone:
		return msg, err
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (c *jsonClient) close() {
	_ = c.stream.CloseSend()
	_ = c.conn.Close()
}

func newTestServer(t *testing.T, grpcAddr string) *Server {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:   filepath.Join(dir, "sessions"),
		ModelsDir: filepath.Join(dir, "models"),
		Port:      "0",
		GRPCAddr:  grpcAddr,
	}

	engineMgr := ai.NewEngineManager(func() (ai.TranscriptionEngine, error) {
		return stubEngine{}, nil
	})
	system, err := proctor.NewSystem(cfg.DataDir, proctor.DefaultConfig(), engineMgr)
	if err != nil {
		t.Fatalf("proctoring system: %v", err)
	}
	modelMgr, err := models.NewManager(cfg.ModelsDir)
	if err != nil {
		t.Fatalf("model manager: %v", err)
	}
	store, err := hr.NewStore(dir)
	if err != nil {
		t.Fatalf("profession store: %v", err)
	}
	agents := hr.NewAgents("", "")

	return NewServer(cfg, system, engineMgr, modelMgr, store, agents)
}

func TestControlStream_StatsAndModels(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "control.sock")

	s := newTestServer(t, "unix:"+socket)
	go s.startGRPCServer()
	time.Sleep(300 * time.Millisecond) // дать сокету создаться

	client := newJSONClient(t, s.Config.GRPCAddr)
	defer client.close()

	if err := client.send(Message{Type: "get_stats"}); err != nil {
		t.Fatalf("send get_stats: %v", err)
	}
	if err := client.send(Message{Type: "get_models"}); err != nil {
		t.Fatalf("send get_models: %v", err)
	}

	gotStats := false
	gotModels := false
	timeout := time.After(2 * time.Second)

	for !(gotStats && gotModels) {
		select {
		case <-timeout:
			t.Fatalf("timeout waiting for responses: stats=%v models=%v", gotStats, gotModels)
		default:
			msg, err := client.recv(2 * time.Second)
			if err != nil {
				t.Fatalf("recv: %v", err)
			}
			switch msg.Type {
			case "system_stats":
				if msg.Stats == nil {
					t.Fatal("system_stats without payload")
				}
				gotStats = true
			case "models_list":
				gotModels = true
			}
		}
	}
}

func TestHTTP_ProfessionLifecycle(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	post := func(path string, body string) (*http.Response, error) {
		return http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	}

	// Создание профессии главой HR
	resp, err := post("/api/professions", `{"role":"hr_head_admin","realName":"Инженер-программист","specialization":"Backend разработчик","department":"IT"}`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created hr.Profession
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	resp.Body.Close()

	// Теги: без ключа OpenAI агент использует словарь по ключевым словам
	resp, err = post("/api/professions/"+created.ID+"/tags", `{}`)
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tags status = %d", resp.StatusCode)
	}
	var tagged hr.Profession
	if err := json.NewDecoder(resp.Body).Decode(&tagged); err != nil {
		t.Fatalf("decode tagged: %v", err)
	}
	resp.Body.Close()
	if tagged.Status != hr.StatusTagsGenerated {
		t.Fatalf("status after tags = %s, want %s", tagged.Status, hr.StatusTagsGenerated)
	}
	if len(tagged.Tags) == 0 {
		t.Fatal("no tags generated")
	}

	// Руководитель отдела утверждает
	resp, err = post("/api/professions/"+created.ID+"/approve", `{"role":"head_admin"}`)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// HR не может утверждать
	resp, err = post("/api/professions/"+created.ID+"/approve", `{"role":"hr_head_admin"}`)
	if err != nil {
		t.Fatalf("approve as hr: %v", err)
	}
	if resp.StatusCode == http.StatusOK {
		t.Fatal("hr_head_admin must not approve professions")
	}
	resp.Body.Close()

	// Вопросы генерирует только super_admin
	resp, err = post("/api/professions/"+created.ID+"/questions", `{"role":"super_admin"}`)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("questions status = %d", resp.StatusCode)
	}
	var withQuestions hr.Profession
	if err := json.NewDecoder(resp.Body).Decode(&withQuestions); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	resp.Body.Close()
	if len(withQuestions.Questions) == 0 {
		t.Fatal("no questions generated")
	}

	resp, err = post("/api/professions/"+created.ID+"/activate", `{"role":"super_admin"}`)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d", resp.StatusCode)
	}
	var active hr.Profession
	if err := json.NewDecoder(resp.Body).Decode(&active); err != nil {
		t.Fatalf("decode active: %v", err)
	}
	resp.Body.Close()
	if active.Status != hr.StatusActive {
		t.Fatalf("final status = %s, want %s", active.Status, hr.StatusActive)
	}
}

func TestHTTP_InitializeGate(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	// Калибровка до инициализации движка отклоняется
	resp, err := http.Post(srv.URL+"/api/sessions/warm/calibration/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start before initialize: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("start before initialize = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	resp, err = http.Post(srv.URL+"/api/initialize", "application/json", nil)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initialize status = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/sessions/warm/calibration/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start after initialize: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start after initialize = %d", resp.StatusCode)
	}
}

func TestHTTP_SessionStatusUnknown(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions/no-such-session/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
