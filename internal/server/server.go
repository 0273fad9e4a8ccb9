package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/config"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/eligibility"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/pipeline"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/regions"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/util"
)

const maxBody = 1 << 16

type Generator interface {
	Generate(ctx context.Context, eventID string) (pipeline.Outcome, error)
	ProcessDeadlines(ctx context.Context, today time.Time) (pipeline.DeadlineReport, error)
}

type FolderPather interface {
	FolderPath(regionID int, eventName string) ([]string, error)
}

type Deps struct {
	Generator Generator
	Records   eligibility.Source
	Folders   FolderPather
	Metrics   http.Handler
	Logger    *slog.Logger
	Now       func() time.Time
}

func New(cfg config.Config, d Deps) *http.Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	loc := cfg.Timezone
	if loc == nil {
		loc = time.Local
	}
	h := &handlers{cfg: cfg, d: d, loc: loc}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": util.NowISO()})
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	mux.HandleFunc("POST /generate", h.signed(h.generate))
	mux.HandleFunc("POST /deadlines/process", h.signed(h.processDeadlines))
	mux.HandleFunc("GET /events/available", h.available)
	mux.HandleFunc("GET /storage/path", h.storagePath)

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type handlers struct {
	cfg config.Config
	d   Deps
	loc *time.Location
}

type bodyHandler func(w http.ResponseWriter, r *http.Request, body []byte)

// signed reads the body and checks X-Signature, the hex HMAC-SHA256 of the
// body under WEBHOOK_SECRET. With no secret configured every request passes.
func (h *handlers) signed(next bodyHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if h.cfg.WebhookSecret != "" && !util.VerifyHMAC(h.cfg.WebhookSecret, string(body), r.Header.Get("X-Signature")) {
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		next(w, r, body)
	}
}

type generateRequest struct {
	EventID string `json:"event_id"`
}

type generateResponse struct {
	OK bool `json:"ok"`
	pipeline.Outcome
	Error string `json:"error,omitempty"`
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request, body []byte) {
	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.EventID) == "" {
		http.Error(w, "event_id required", http.StatusBadRequest)
		return
	}
	out, err := h.d.Generator.Generate(r.Context(), strings.TrimSpace(req.EventID))
	if err != nil {
		h.d.Logger.Error("generate failed", "event_id", req.EventID, "err", err)
		writeJSON(w, statusFor(err), generateResponse{Outcome: out, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{OK: true, Outcome: out})
}

type deadlinesRequest struct {
	// Date overrides today, YYYY-MM-DD.
	Date string `json:"date"`
}

func (h *handlers) processDeadlines(w http.ResponseWriter, r *http.Request, body []byte) {
	today := h.d.Now().In(h.loc)
	if len(strings.TrimSpace(string(body))) > 0 {
		var req deadlinesRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if req.Date != "" {
			d, err := util.ParseDate(req.Date, h.loc)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			today = d
		}
	}
	report, err := h.d.Generator.ProcessDeadlines(r.Context(), today)
	if err != nil {
		h.d.Logger.Error("process deadlines failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"deadline":        report.Deadline,
		"processed_count": report.Processed(),
		"results":         report.Results,
	})
}

type eventView struct {
	ID             string   `json:"event_id"`
	Name           string   `json:"name"`
	RegionID       int      `json:"region_id"`
	Deadline       string   `json:"deadline"`
	EventDate      string   `json:"event_date,omitempty"`
	Classification int      `json:"classification"`
	Mixed          bool     `json:"mixed"`
	Categories     []string `json:"categories"`
}

func viewOf(ev models.Event) eventView {
	v := eventView{
		ID:             ev.ID,
		Name:           ev.Name,
		RegionID:       ev.RegionID,
		Deadline:       ev.Deadline.Format("2006-01-02"),
		Classification: int(ev.Classification),
		Mixed:          ev.Mixed,
		Categories:     ev.Categories,
	}
	if !ev.EventDate.IsZero() {
		v.EventDate = ev.EventDate.Format("2006-01-02")
	}
	return v
}

func (h *handlers) available(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account_id"))
	if accountID == "" {
		http.Error(w, "account_id required", http.StatusBadRequest)
		return
	}
	events, err := eligibility.Available(r.Context(), h.d.Records, accountID, h.d.Now().In(h.loc))
	if err != nil {
		h.d.Logger.Error("available events failed", "account_id", accountID, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	views := []eventView{}
	for _, ev := range eligibility.ByDeadline(events) {
		views = append(views, viewOf(ev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": accountID, "events": views})
}

func (h *handlers) storagePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	regionID, err := strconv.Atoi(q.Get("region_id"))
	eventName := strings.TrimSpace(q.Get("event_name"))
	if err != nil || eventName == "" {
		http.Error(w, "region_id and event_name required", http.StatusBadRequest)
		return
	}
	segments, err := h.d.Folders.FolderPath(regionID, eventName)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments, "path": strings.Join(segments, "/")})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, regions.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrTransport), errors.Is(err, storage.ErrUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
