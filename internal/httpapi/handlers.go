package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/John-Robertt/subprobe-go/internal/model"
	"github.com/John-Robertt/subprobe-go/internal/output"
	"github.com/John-Robertt/subprobe-go/internal/pipeline"
)

type handlers struct {
	opt Options
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}

type subRequest struct {
	Tier     string // as requested, "all" included
	Protocol string
	Encode   output.Encoding

	tier  model.Tier
	proto model.Protocol
}

func parseSubRequest(r *http.Request) (subRequest, error) {
	req := subRequest{
		Tier:     strings.ToLower(chi.URLParam(r, "tier")),
		Protocol: strings.ToLower(chi.URLParam(r, "protocol")),
	}
	t, p, ok := output.ParseSelector(req.Tier, req.Protocol)
	if !ok {
		return req, &APIError{
			Status:   http.StatusBadRequest,
			AppError: requestAppError("INVALID_ARGUMENT", "unknown tier or protocol", "tier: all|good|warn; protocol: all|vless|vmess|trojan|shadowsocks|hysteria|hysteria2|tuic|socks|http"),
		}
	}
	req.tier, req.proto = t, p

	enc, err := output.ParseEncoding(r.URL.Query().Get("encode"))
	if err != nil {
		return req, &APIError{
			Status:   http.StatusBadRequest,
			AppError: requestAppError("INVALID_ARGUMENT", "encode must be base64 or raw", "encode=base64|raw"),
			Cause:    err,
		}
	}
	req.Encode = enc
	return req, nil
}

func (h *handlers) handleSub(w http.ResponseWriter, r *http.Request) {
	req, err := parseSubRequest(r)
	if err != nil {
		h.writeErrorFromErr(w, err)
		return
	}

	res := h.opt.Store.Latest()
	if res == nil {
		h.writeError(w, http.StatusServiceUnavailable, model.AppError{
			Code:    "NO_RUN",
			Message: "no run has finished yet",
			Stage:   "serve",
		})
		return
	}

	recs := res.Select(req.tier, req.proto)
	if len(recs) == 0 {
		h.writeError(w, http.StatusNotFound, notFound("no records for "+req.Tier+"/"+req.Protocol))
		return
	}
	lines := make([]string, len(recs))
	for i, rec := range recs {
		lines[i] = rec.Canonical
	}

	a := output.Artifact{Tier: req.Tier, Protocol: req.Protocol}
	w.Header().Set("Content-Disposition", contentDispositionAttachment(a.Name()))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Run-Id", res.RunID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(output.Render(lines, req.Encode))
}

type summaryResponse struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  string           `json:"duration"`
	Summary   pipeline.Summary `json:"summary"`
	Buckets   map[string]int   `json:"buckets"`
	Sources   []sourceSummary  `json:"sources"`
}

type sourceSummary struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Good   int    `json:"good"`
	Warn   int    `json:"warn"`
	Bad    int    `json:"bad"`
	Routed int    `json:"routed"`
}

func (h *handlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	res := h.opt.Store.Latest()
	if res == nil {
		h.writeError(w, http.StatusServiceUnavailable, model.AppError{
			Code:    "NO_RUN",
			Message: "no run has finished yet",
			Stage:   "serve",
		})
		return
	}

	resp := summaryResponse{
		RunID:     res.RunID,
		StartedAt: res.StartedAt,
		Duration:  res.Duration.Round(time.Millisecond).String(),
		Summary:   res.Summary,
		Buckets:   make(map[string]int, len(res.Buckets)),
		Sources:   make([]sourceSummary, 0, len(res.Sources)),
	}
	for k, v := range res.Buckets {
		resp.Buckets[k.String()] = len(v)
	}
	for _, sr := range res.Sources {
		resp.Sources = append(resp.Sources, sourceSummary{
			Index:  sr.Index,
			URL:    sr.URL,
			Status: string(sr.Status),
			Reason: sr.Reason,
			Good:   sr.Good,
			Warn:   sr.Warn,
			Bad:    sr.Bad,
			Routed: len(sr.Routed),
		})
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.opt.Runner == nil {
		h.writeError(w, http.StatusNotImplemented, model.AppError{
			Code:    "RUN_DISABLED",
			Message: "this server does not accept run requests",
			Stage:   "serve",
		})
		return
	}
	if err := h.opt.Runner.Trigger(); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			h.writeError(w, http.StatusConflict, model.AppError{
				Code:    "RUN_IN_PROGRESS",
				Message: "a run is already in progress",
				Stage:   "serve",
			})
			return
		}
		h.writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
