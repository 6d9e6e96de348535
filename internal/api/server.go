package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"workpool/internal/chaos"
	"workpool/internal/events"
	"workpool/internal/logger"
	"workpool/internal/metrics"
	"workpool/internal/recovery"
	"workpool/internal/worker"
	"workpool/internal/workload"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// statusInterval は実行中のステータス配信間隔
const statusInterval = time.Second

// Server はAPIサーバー
type Server struct {
	addr      string
	namespace string
	registry  *prometheus.Registry
	eventBus  *events.Bus

	mu         sync.RWMutex
	running    bool
	engine     *workload.Engine
	config     workload.Config
	lastResult *workload.Result
	lastError  string
	collectors map[string]*metrics.Collector
	wsClients  map[*websocket.Conn]bool
	baseCtx    context.Context

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
// namespace が空の場合は metrics.DefaultNamespace を使う
func NewServer(addr, namespace string) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		addr:       addr,
		namespace:  namespace,
		registry:   registry,
		eventBus:   events.NewBusWithBuffer(256),
		collectors: make(map[string]*metrics.Collector),
		wsClients:  make(map[*websocket.Conn]bool),
		baseCtx:    context.Background(),
	}
}

// Registry はメトリクスのレジストリを返す
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// EventBus はワークロードのイベントが流れるバスを返す
func (s *Server) EventBus() *events.Bus {
	return s.eventBus
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/workload/start", s.handleWorkloadStart)

	// Prometheus
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始する。ctx が終了するまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドでイベントとステータスを配信
	go s.relayEvents(ctx)
	go s.broadcastLoop(ctx)

	logger.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.eventBus.Close()
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running      bool              `json:"running"`
	Workload     string            `json:"workload,omitempty"`
	Pool         *worker.Stats     `json:"pool,omitempty"`
	WorkerStates []string          `json:"worker_states,omitempty"`
	Metrics      *metrics.Snapshot `json:"metrics,omitempty"`
	Chaos        *chaos.Stats      `json:"chaos,omitempty"`
	Recovery     *recovery.Stats   `json:"recovery,omitempty"`
	LastResult   *workload.Result  `json:"last_result,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
	EventsLost   uint64            `json:"events_dropped"`
}

// status は現在のステータスを組み立てる
func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		Running:    s.running,
		Workload:   s.config.Name,
		LastResult: s.lastResult,
		LastError:  s.lastError,
		EventsLost: s.eventBus.Dropped(),
	}

	if s.engine == nil {
		return resp
	}

	if pool := s.engine.Pool(); pool != nil {
		stats := pool.Stats()
		resp.Pool = &stats
		for _, st := range pool.WorkerStates() {
			resp.WorkerStates = append(resp.WorkerStates, st.String())
		}
	}
	resp.Metrics = s.engine.Metrics()
	resp.Chaos = s.engine.ChaosStats()
	resp.Recovery = s.engine.RecoveryStats()

	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

// WorkloadRequest はワークロード開始リクエスト
type WorkloadRequest struct {
	Preset  string `json:"preset"`
	Workers int    `json:"workers,omitempty"`
	Tasks   int    `json:"tasks,omitempty"`
}

// collectorFor はプール名ごとの Collector を返す
// 同じ名前で二度登録するとパニックするため、作成済みのものを再利用する
// s.mu を保持した状態で呼ぶこと
func (s *Server) collectorFor(pool string) *metrics.Collector {
	if c, ok := s.collectors[pool]; ok {
		return c
	}
	c := metrics.NewCollector(s.registry, s.namespace, pool)
	s.collectors[pool] = c
	return c
}

func (s *Server) handleWorkloadStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req WorkloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// プリセット取得
	config, ok := workload.QuickPreset(), true
	if req.Preset != "" {
		config, ok = workload.GetPreset(req.Preset)
	}
	if !ok {
		http.Error(w, "Unknown preset: "+req.Preset, http.StatusNotFound)
		return
	}

	// オーバーライド
	if req.Workers > 0 {
		config.Workers = req.Workers
	}
	if req.Tasks > 0 {
		config.Tasks = req.Tasks
	}
	if err := config.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "Workload already running", http.StatusConflict)
		return
	}

	engine := workload.New(config)
	engine.SetEventBus(s.eventBus)
	engine.SetCollector(s.collectorFor(config.Name))

	s.config = config
	s.engine = engine
	s.running = true
	ctx := s.baseCtx
	s.mu.Unlock()

	// バックグラウンドで実行
	go func() {
		result, err := engine.Run(ctx)

		s.mu.Lock()
		s.running = false
		s.lastResult = result
		s.lastError = ""
		if err != nil {
			s.lastError = err.Error()
		}
		s.mu.Unlock()

		if err != nil {
			logger.Error("", "Workload failed: %v", err)
		} else {
			logger.Info("", "Workload completed: %d tasks (%d failed)", result.Submitted, result.Failed)
		}

		s.broadcast(map[string]any{
			"type":   "workload_complete",
			"result": result,
		})
	}()

	s.writeJSON(w, map[string]string{"status": "started", "workload": config.Name})
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Workload    string `json:"workload"`
	Description string `json:"description"`
	Workers     int    `json:"workers"`
	Tasks       int    `json:"tasks"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range workload.ListPresets() {
		config, _ := workload.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        name,
			Workload:    string(config.Workload),
			Description: config.Description,
			Workers:     config.Workers,
			Tasks:       config.Tasks,
		})
	}

	s.writeJSON(w, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// clientCount は接続中のWebSocketクライアント数を返す
func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// relayEvents はイベントバスのイベントをWebSocketクライアントに転送する
func (s *Server) relayEvents(ctx context.Context) {
	ch := s.eventBus.Subscribe()
	defer s.eventBus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": ev,
			})
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}

			s.broadcast(map[string]any{
				"type":   "status",
				"status": status,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
