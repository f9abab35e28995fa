package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// UsageLogsResponse is the paginated envelope for /api/v1/usage_logs.
type UsageLogsResponse struct {
	Data       []model.UsageLog `json:"data"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// Server serves a fixed set of usage logs behind the provider's pagination
// contract.
type Server struct {
	logs   []model.UsageLog
	router chi.Router
}

// NewServer creates a mock API server over the given logs.
func NewServer(logs []model.UsageLog) *Server {
	s := &Server{logs: logs}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))
	r.Use(requestID)

	r.Get("/", s.handleIndex)
	r.Get("/api/v1/usage_logs", s.handleUsageLogs)
	r.Get("/api/v1/cost_settings", s.handleCostSettings)

	s.router = r
	return s
}

// Handler exposes the routed handler for servers and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestID tags each response so paginated fetches can be correlated in
// client logs.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "FinOps Mock Usage Data API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"usage_logs":    "/api/v1/usage_logs",
			"cost_settings": "/api/v1/cost_settings",
		},
	})
}

func (s *Server) handleUsageLogs(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		writeDetail(w, http.StatusBadRequest, "page must be an integer >= 1")
		return
	}
	pageSize, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		writeDetail(w, http.StatusBadRequest,
			fmt.Sprintf("page_size must be an integer between 1 and %d", maxPageSize))
		return
	}

	total := len(s.logs)
	totalPages := (total + pageSize - 1) / pageSize

	if page > totalPages && total > 0 {
		writeDetail(w, http.StatusNotFound,
			fmt.Sprintf("Page %d not found. Total pages: %d", page, totalPages))
		return
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	zap.L().Debug("serving usage log page",
		zap.Int("page", page),
		zap.Int("page_size", pageSize),
		zap.Int("records", end-start),
	)
	writeJSON(w, http.StatusOK, UsageLogsResponse{
		Data:       s.logs[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func (s *Server) handleCostSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.CostSettings{
		ACUBaseCost:          0.10,
		OutOfHoursMultiplier: 1.5,
		BusinessUnitRates: map[string]float64{
			"Finance":     1.2,
			"Engineering": 1.0,
			"Operations":  0.9,
			"Marketing":   1.1,
			"Sales":       1.15,
			"HR":          0.95,
		},
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("mockapi: encode response", zap.Error(err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
