// Package api exposes the keeper over REST and WebSocket: clients register
// plaintext order params here, observers read decoded record views and
// privacy assessments, and the executions channel streams settlement
// outcomes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/events"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/keeper"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/privacy"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/trigger"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Server wires the REST routes and the WebSocket hub.
type Server struct {
	keeper              *keeper.Keeper
	base                ledger.Reader
	exec                ledger.Reader
	delegationAuthority ledger.Address

	router   *mux.Router
	hub      *Hub
	registry *prometheus.Registry
	log      *zap.SugaredLogger
}

// Options are the server's collaborators. Registry may be nil, which
// disables the /metrics route.
type Options struct {
	Keeper              *keeper.Keeper
	Base                ledger.Reader
	Exec                ledger.Reader
	DelegationAuthority ledger.Address
	Registry            *prometheus.Registry
	Logger              *zap.SugaredLogger
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	s := &Server{
		keeper:              opts.Keeper,
		base:                opts.Base,
		exec:                opts.Exec,
		delegationAuthority: opts.DelegationAuthority,
		router:              mux.NewRouter(),
		hub:                 NewHub(),
		registry:            opts.Registry,
		log:                 opts.Logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders/{address}/params", s.handleRegisterParams).Methods("POST")
	api.HandleFunc("/orders/{address}/privacy", s.handleGetPrivacy).Methods("GET")
	api.HandleFunc("/orders/{address}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full middleware-wrapped handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves until the context ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.log.Infow("api_started", "addr", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// BroadcastResult pushes one settlement outcome to the executions channel.
func (s *Server) BroadcastResult(res keeper.ExecutionResult) {
	subject, ev := events.NewOrderEvent(res)
	s.hub.BroadcastToChannel(ChannelExecutions, struct {
		Type    string            `json:"type"`
		Subject string            `json:"subject"`
		Event   events.OrderEvent `json:"event"`
	}{Type: "execution", Subject: subject, Event: ev})
}

func (s *Server) handleRegisterParams(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}

	var req RegisterParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "expected long or short")
		return
	}
	params := commitment.OrderParams{
		MarketIndex:     req.MarketIndex,
		Side:            side,
		BaseAssetAmount: req.BaseAssetAmount,
		ReduceOnly:      req.ReduceOnly,
	}

	rec := s.lookupRecord(addr)
	if rec == nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	// Reject up front what the keeper would refuse to execute anyway.
	if !commitment.Verify(params, req.Nonce, rec.ParamsCommitment[:]) {
		respondError(w, http.StatusConflict, "commitment mismatch",
			"params and nonce do not match the on-record commitment")
		return
	}

	s.keeper.RegisterOrderParams(addr, params, req.Nonce)
	respondJSON(w, RegisterParamsResponse{Status: "registered", Record: addr.Hex()})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}

	layer := "exec"
	rec := readRecord(s.exec, addr)
	if rec == nil {
		layer = "base"
		rec = readRecord(s.base, addr)
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}

	respondJSON(w, newOrderView(addr, layer, rec))
}

func (s *Server) handleGetPrivacy(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}

	baseAcc, err := s.base.Get(addr)
	if err != nil || baseAcc == nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	execAcc, _ := s.exec.Get(addr)

	report, err := privacy.Assess(baseAcc, execAcc, s.delegationAuthority, nil)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "not assessable", err.Error())
		return
	}
	respondJSON(w, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.keeper.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) lookupRecord(addr ledger.Address) *ghost.GhostOrderRecord {
	if rec := readRecord(s.exec, addr); rec != nil {
		return rec
	}
	return readRecord(s.base, addr)
}

func readRecord(reader ledger.Reader, addr ledger.Address) *ghost.GhostOrderRecord {
	acc, err := reader.Get(addr)
	if err != nil || acc == nil {
		return nil
	}
	rec, ok := ghost.Decode(acc.Data)
	if !ok {
		return nil
	}
	return rec
}

func newOrderView(addr ledger.Address, layer string, rec *ghost.GhostOrderRecord) OrderView {
	view := OrderView{
		Address:          addr.Hex(),
		Layer:            layer,
		Owner:            rec.Owner.Hex(),
		OrderID:          rec.OrderID,
		MarketIndex:      rec.MarketIndex,
		Status:           rec.Status.String(),
		TriggerPrice:     rec.TriggerPrice,
		TriggerCondition: condString(rec.TriggerCondition),
		Expiry:           rec.Expiry,
		CreatedAt:        rec.CreatedAt,
		TriggeredAt:      rec.TriggeredAt,
		ReadyExpiresAt:   rec.ReadyExpiresAt,
		ExecutedAt:       rec.ExecutedAt,
		ExecutionPrice:   rec.ExecutionPrice,
		ParamsCommitment: hexutil.Encode(rec.ParamsCommitment[:]),
	}
	// Hidden until the reveal writes them.
	if rec.OrderSide != 0 {
		view.Side = sideString(rec.OrderSide)
		view.BaseAssetAmount = rec.BaseAssetAmount
		view.ReduceOnly = rec.ReduceOnly
	}
	return view
}

func parseSide(s string) (commitment.Side, bool) {
	switch s {
	case "long":
		return commitment.SideLong, true
	case "short":
		return commitment.SideShort, true
	default:
		return 0, false
	}
}

func sideString(s commitment.Side) string {
	switch s {
	case commitment.SideLong:
		return "long"
	case commitment.SideShort:
		return "short"
	default:
		return "unset"
	}
}

func condString(c trigger.Condition) string {
	switch c {
	case trigger.Above:
		return "above"
	case trigger.Below:
		return "below"
	default:
		return "unset"
	}
}

func pathAddress(w http.ResponseWriter, r *http.Request) (ledger.Address, bool) {
	addr, err := ledger.AddressFromHex(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return ledger.Address{}, false
	}
	return addr, true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
