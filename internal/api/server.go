package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/walidbouh09/tradesense/internal/challenge"
	"github.com/walidbouh09/tradesense/internal/engine"
	"github.com/walidbouh09/tradesense/internal/events"
	"github.com/walidbouh09/tradesense/internal/storage"
	"github.com/walidbouh09/tradesense/pkg/types"
)

// Server is the HTTP/WebSocket API server. Transport stays thin: every
// decision happens in the engine or the risk pipeline; handlers only
// decode, delegate and map errors.
type Server struct {
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	db         *storage.Database
	engine     *engine.Engine
	bus        *events.Bus
	hub        *Hub
	metrics    *Metrics

	workerStats func() any
}

// NewServer creates the API server and wires its routes.
func NewServer(logger *zap.Logger, config *types.ServerConfig, db *storage.Database, eng *engine.Engine, bus *events.Bus, hub *Hub, metrics *Metrics) *Server {
	s := &Server{
		logger:  logger.Named("api"),
		config:  config,
		router:  mux.NewRouter(),
		db:      db,
		engine:  eng,
		bus:     bus,
		hub:     hub,
		metrics: metrics,
	}
	s.setupRoutes()
	return s
}

// Router exposes the router for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/challenges", s.handleCreateChallenge).Methods("POST")
	s.router.HandleFunc("/api/v1/challenges/{id}", s.handleGetChallenge).Methods("GET")
	s.router.HandleFunc("/api/v1/challenges/{id}/assessments", s.handleListAssessments).Methods("GET")

	s.router.HandleFunc("/api/v1/trades", s.handleIngestTrade).Methods("POST")

	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	if s.config.EnableMetrics && s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	if s.hub != nil {
		s.router.HandleFunc(s.config.WebSocketPath, s.hub.ServeWS)
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// createChallengeRequest is the provisioning payload.
type createChallengeRequest struct {
	TraderID                string          `json:"traderId"`
	InitialBalance          decimal.Decimal `json:"initialBalance"`
	MaxDailyDrawdownPercent decimal.Decimal `json:"maxDailyDrawdownPercent"`
	MaxTotalDrawdownPercent decimal.Decimal `json:"maxTotalDrawdownPercent"`
	ProfitTargetPercent     decimal.Decimal `json:"profitTargetPercent"`
	ChallengeType           string          `json:"challengeType"`
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if req.TraderID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("traderId is required"))
		return
	}

	ch, err := challenge.New(req.TraderID, challenge.Config{
		InitialBalance:          req.InitialBalance,
		MaxDailyDrawdownPercent: req.MaxDailyDrawdownPercent,
		MaxTotalDrawdownPercent: req.MaxTotalDrawdownPercent,
		ProfitTargetPercent:     req.ProfitTargetPercent,
		ChallengeType:           req.ChallengeType,
	}, time.Now().UTC())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	repo := storage.NewChallengeRepository(s.db.DB())
	if err := repo.Create(r.Context(), ch); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info("challenge created",
		zap.String("challenge_id", ch.ID),
		zap.String("trader_id", ch.TraderID),
		zap.String("type", ch.Config.ChallengeType),
	)
	s.writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	repo := storage.NewChallengeRepository(s.db.DB())
	ch, err := repo.Get(r.Context(), id)
	if err != nil {
		s.mapEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	repo := storage.NewAssessmentRepository(s.db.DB())
	assessments, err := repo.ListByChallenge(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assessments)
}

// handleIngestTrade validates a trade-execution payload and runs the
// engine inside one transaction. The transaction is owned here, not by
// the engine: any engine error rolls the whole thing back, including
// the trade record insert.
func (s *Server) handleIngestTrade(w http.ResponseWriter, r *http.Request) {
	var evt types.TradeExecuted
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if !evt.Quantity.IsPositive() || !evt.Price.IsPositive() {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("quantity and price must be positive"))
		return
	}
	if evt.Side != types.TradeSideBuy && evt.Side != types.TradeSideSell {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("side must be BUY or SELL"))
		return
	}
	evt.ExecutedAt = evt.ExecutedAt.UTC()

	ctx := r.Context()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := storage.NewChallengeRepository(tx)
		if err := s.engine.HandleTradeExecuted(ctx, repo, &evt); err != nil {
			return err
		}
		return storage.NewTradeRepository(tx).Insert(ctx, &evt)
	})
	if err != nil {
		s.mapEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"challengeId": evt.ChallengeID,
		"tradeId":     evt.TradeID,
	})
}

// SetWorkerStats wires the background worker's counters into /api/v1/stats.
func (s *Server) SetWorkerStats(fn func() any) {
	s.workerStats = fn
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"eventBus":  s.bus.GetStats(),
		"wsClients": s.hub.ClientCount(),
	}
	if s.workerStats != nil {
		stats["riskWorker"] = s.workerStats()
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// mapEngineError translates core errors into HTTP status codes.
func (s *Server) mapEngineError(w http.ResponseWriter, err error) {
	var notFound *engine.ChallengeNotFoundError
	var rejected *engine.TradeRejectedError
	var invalid *challenge.InvalidTransitionError

	switch {
	case errors.As(err, &notFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.As(err, &rejected):
		s.logger.Info("trade rejected",
			zap.String("challenge_id", rejected.ChallengeID),
			zap.String("trade_id", rejected.TradeID),
			zap.String("reason", rejected.Reason()),
		)
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, storage.ErrVersionConflict):
		s.writeError(w, http.StatusConflict, err)
	case errors.As(err, &invalid):
		s.logger.Error("invalid state transition", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
