package http

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/hsliang/redboard/internal/application"
	"github.com/hsliang/redboard/internal/domain/sector"
	"github.com/hsliang/redboard/internal/notify"
	"github.com/hsliang/redboard/internal/persistence"
)

type contextKey string

const requestIDKey contextKey = "request_id"

func requestID(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return "unknown"
}

// envelope is the uniform API response body. Code zero means success; error
// responses reuse the HTTP status as the code.
type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Handlers holds the endpoint implementations.
type Handlers struct {
	svc *application.ReviewService
	bus *notify.Bus
}

// NewHandlers wires the endpoints over the application service.
func NewHandlers(svc *application.ReviewService, bus *notify.Bus) *Handlers {
	return &Handlers{svc: svc, bus: bus}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, `{"code":500,"message":"json encoding failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) ok(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, envelope{Code: 0, Message: "success", Data: data})
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	log.Debug().Str("request_id", requestID(r)).Int("status", status).Str("message", message).Msg("request failed")
	h.writeJSON(w, status, envelope{Code: status, Message: message})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.ok(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound handles unrouted paths.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.fail(w, r, http.StatusNotFound, "endpoint not found")
}

// MarketEmotion serves the live sentiment snapshot.
func (h *Handlers) MarketEmotion(w http.ResponseWriter, r *http.Request) {
	h.ok(w, h.svc.Emotion(r.Context()))
}

// SectorList serves the per-sector review table.
func (h *Handlers) SectorList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.SectorTable(r.Context())
	if err != nil {
		h.fail(w, r, http.StatusBadGateway, "sector data unavailable")
		return
	}
	h.ok(w, rows)
}

// SectorRanking serves the top sectors by ?by= criterion and ?limit=.
func (h *Handlers) SectorRanking(w http.ResponseWriter, r *http.Request) {
	by := sector.OrderBy(r.URL.Query().Get("by"))
	limit := queryInt(r, "limit", 10)

	ranked, err := h.svc.SectorRanking(r.Context(), by, limit)
	if err != nil {
		h.fail(w, r, http.StatusBadGateway, "sector data unavailable")
		return
	}
	h.ok(w, ranked)
}

// SectorRotation serves the rotation analysis.
func (h *Handlers) SectorRotation(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Rotation(r.Context())
	if err != nil {
		h.fail(w, r, http.StatusBadGateway, "sector data unavailable")
		return
	}
	h.ok(w, out)
}

type generateRequest struct {
	Date       string   `json:"date"`
	Session    string   `json:"session"`
	HotSectors []string `json:"hot_sectors"`
	Notes      string   `json:"notes"`
}

// GenerateReview runs the pipeline for a trade date and persists the
// result. A duplicate date returns 409 with the freshly computed record so
// the UI can still render it.
func (h *Handlers) GenerateReview(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.Body != nil {
		// An empty body means "today"; only malformed JSON is rejected.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.fail(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Date == "" {
		req.Date = r.URL.Query().Get("date")
	}
	if req.Session == "" {
		req.Session = r.URL.Query().Get("session")
	}

	rec, err := h.svc.Generate(r.Context(), req.Date, req.Session)
	switch {
	case errors.Is(err, application.ErrInvalidDate):
		h.fail(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, persistence.ErrDuplicateDate):
		h.writeJSON(w, http.StatusConflict, envelope{
			Code:    http.StatusConflict,
			Message: "review already exists for date",
			Data:    rec,
		})
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, "review generation failed")
	default:
		// Optional user enrichment of the freshly stored record.
		if len(req.HotSectors) > 0 || req.Notes != "" {
			update := persistence.ReviewUpdate{HotSectors: req.HotSectors, Notes: req.Notes}
			if err := h.svc.Update(r.Context(), rec.ID, update); err == nil {
				rec.HotSectors = req.HotSectors
				rec.Notes = req.Notes
			}
		}
		h.ok(w, rec)
	}
}

// CreateReview stores a caller-supplied review record as-is, for manual
// entry of days the pipeline missed.
func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	var rec persistence.MarketReview
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	switch _, err := h.svc.Create(r.Context(), &rec); {
	case errors.Is(err, application.ErrInvalidDate):
		h.fail(w, r, http.StatusBadRequest, "invalid date, want YYYYMMDD or YYYY-MM-DD")
	case errors.Is(err, persistence.ErrDuplicateDate):
		h.fail(w, r, http.StatusConflict, "review already exists for date")
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, "review creation failed")
	default:
		h.ok(w, rec)
	}
}

// GetReview fetches one stored review by date.
func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]

	rec, err := h.svc.GetByDate(r.Context(), date)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		h.fail(w, r, http.StatusNotFound, "no review for date "+date)
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, "review lookup failed")
	default:
		h.ok(w, rec)
	}
}

// ListReviews pages stored reviews, newest first.
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	out, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "review listing failed")
		return
	}
	h.ok(w, out)
}

// UpdateReview replaces hot sectors and notes on a stored review.
func (h *Handlers) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid review id")
		return
	}

	var update persistence.ReviewUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	switch err := h.svc.Update(r.Context(), id, update); {
	case errors.Is(err, persistence.ErrNotFound):
		h.fail(w, r, http.StatusNotFound, fmt.Sprintf("no review with id %d", id))
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, "review update failed")
	default:
		h.ok(w, nil)
	}
}

// DeleteReview removes a stored review by id.
func (h *Handlers) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid review id")
		return
	}

	switch err := h.svc.Delete(r.Context(), id); {
	case errors.Is(err, persistence.ErrNotFound):
		h.fail(w, r, http.StatusNotFound, fmt.Sprintf("no review with id %d", id))
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, "review deletion failed")
	default:
		h.ok(w, nil)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// Hijack lets the logging wrapper pass websocket upgrades through.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
