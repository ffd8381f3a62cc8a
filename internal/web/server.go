package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/keel-protocol/keel/internal/engine"
	"github.com/keel-protocol/keel/internal/logger"
	"github.com/keel-protocol/keel/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer serves the read-only protocol status API.
type WebServer struct {
	router *mux.Router
	engine *engine.Engine
	port   string
	// persisted reports whether the audit database is configured; history
	// endpoints return 503 without it.
	persisted bool
}

// NewWebServer creates a new web server instance.
func NewWebServer(eng *engine.Engine, port string, persisted bool) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		engine:    eng,
		port:      port,
		persisted: persisted,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes.
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/status", ws.handleGetStatus).Methods("GET")
	api.HandleFunc("/params", ws.handleGetParams).Methods("GET")
	api.HandleFunc("/fees", ws.handleGetFees).Methods("GET")
	api.HandleFunc("/positions/{address}", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/requests/{id:[0-9]+}", ws.handleGetRequest).Methods("GET")
	api.HandleFunc("/requests", ws.handleGetRequests).Methods("GET")
	api.HandleFunc("/operations", ws.handleGetOperations).Methods("GET")
	api.HandleFunc("/interventions", ws.handleGetInterventions).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth reports liveness plus a coarse engine health signal.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := ws.engine.StatusSnapshot()
	healthy := err == nil

	dbHealthy := true
	if ws.persisted {
		if state.DB == nil || state.DB.Ping() != nil {
			dbHealthy = false
		}
	}

	overallStatus := "OK"
	code := http.StatusOK
	if !healthy || !dbHealthy {
		overallStatus = "DEGRADED"
		code = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, code, map[string]interface{}{
		"status":           overallStatus,
		"timestamp":        time.Now().UTC(),
		"engine_ok":        healthy,
		"database_ok":      dbHealthy,
		"system_state":     status.State,
		"paused":           status.Paused,
		"queued_withdrawals": status.QueuedCount,
	})
}

// handleGetStatus returns the live engine view: reserves, NAVs, CR, tier.
func (ws *WebServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := ws.engine.StatusSnapshot()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to assemble status snapshot")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve status")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, status)
}

func (ws *WebServer) handleGetParams(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Params())
}

func (ws *WebServer) handleGetFees(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.FeeSchedule())
}

// handleGetPosition returns the in-memory position for an address.
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	pos, ok := ws.engine.Position(address)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "No position for address")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, pos)
}

// handleGetRequest returns one withdrawal request by id.
func (ws *WebServer) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	req, ok := ws.engine.WithdrawalRequest(id)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Request not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, req)
}

// handleGetRequests returns the withdrawal requests of one requester.
func (ws *WebServer) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	requester := r.URL.Query().Get("requester")
	if requester == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "requester query parameter is required")
		return
	}

	reqs := ws.engine.WithdrawalRequestsFor(requester)
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"requests": reqs,
		"count":    len(reqs),
	})
}

// handleGetOperations returns the persisted operation history.
func (ws *WebServer) handleGetOperations(w http.ResponseWriter, r *http.Request) {
	if !ws.persisted {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "History requires a configured database")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	opType := r.URL.Query().Get("type")

	ops, err := state.GetRecentOperations(opType, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent operations")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve operations")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
		"limit":      limit,
	})
}

// handleGetInterventions returns the persisted intervention history.
func (ws *WebServer) handleGetInterventions(w http.ResponseWriter, r *http.Request) {
	if !ws.persisted {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "History requires a configured database")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	recs, err := state.GetRecentInterventions(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get interventions")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve interventions")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"interventions": recs,
		"count":         len(recs),
	})
}

// writeJSONResponse writes a JSON response.
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response.
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// corsMiddleware adds CORS headers.
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
