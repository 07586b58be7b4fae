package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/audit"
	"github.com/sentinelkit/logscrub/internal/cache"
	"github.com/sentinelkit/logscrub/internal/events"
	"github.com/sentinelkit/logscrub/internal/rules"
	"github.com/sentinelkit/logscrub/internal/scrub"
)

type scrubRequest struct {
	Text string `json:"text"`
	// Optional ad-hoc rules overriding the active pack for this request
	Rules []rules.Rule `json:"rules,omitempty"`
}

type scrubResponse struct {
	MaskedText    string          `json:"masked_text"`
	Findings      []rules.Finding `json:"findings"`
	TotalFindings int             `json:"total_findings"`
	Fingerprint   string          `json:"fingerprint"`
	CacheHit      bool            `json:"cache_hit"`
	ProcessingMS  float64         `json:"processing_ms"`
}

type batchScrubRequest struct {
	Texts []string `json:"texts"`
}

type batchScrubItem struct {
	MaskedText    string          `json:"masked_text"`
	Findings      []rules.Finding `json:"findings"`
	TotalFindings int             `json:"total_findings"`
	CacheHit      bool            `json:"cache_hit"`
}

type batchScrubResponse struct {
	Results       []batchScrubItem `json:"results"`
	Fingerprint   string           `json:"fingerprint"`
	TotalFindings int              `json:"total_findings"`
	ProcessingMS  float64          `json:"processing_ms"`
}

type scrubFileRequest struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Mode       string `json:"mode,omitempty"` // "parallel" (default) or "mmap"
}

type scrubFileResponse struct {
	*scrub.Outcome
	OutputPath string  `json:"output_path"`
	DurationMS float64 `json:"duration_ms"`
}

type rulesResponse struct {
	Count       int          `json:"count"`
	Fingerprint string       `json:"fingerprint"`
	Rules       []rules.Rule `json:"rules"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`)); err != nil {
		s.logger.Warn("failed to write health response", zap.Error(err))
	}
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	set := s.activeRules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":          "logscrub",
		"version":       "0.1.0",
		"rules":         set.Len(),
		"fingerprint":   set.Fingerprint(),
		"cache_enabled": s.cache != nil,
		"audit_enabled": s.store != nil,
	})
}

// handleScrub masks one text payload
func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	var req scrubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	set := s.activeRules()
	if len(req.Rules) > 0 {
		adhoc, err := rules.Compile(req.Rules)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		set = adhoc
	}

	var resp scrubResponse
	if s.cache != nil {
		if hit := s.cache.Get(r.Context(), set.Fingerprint(), req.Text); hit != nil {
			resp = scrubResponse{
				MaskedText:    hit.MaskedText,
				Findings:      hit.Findings,
				TotalFindings: findingsTotal(hit.Findings),
				Fingerprint:   set.Fingerprint(),
				CacheHit:      true,
				ProcessingMS:  elapsedMS(start),
			}
			s.finishScrub(r, requestID, resp)
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	masked, findings := set.Inspect(req.Text)
	resp = scrubResponse{
		MaskedText:    masked,
		Findings:      findings,
		TotalFindings: findingsTotal(findings),
		Fingerprint:   set.Fingerprint(),
		ProcessingMS:  elapsedMS(start),
	}

	if s.cache != nil {
		// Failures are logged by the cache itself
		s.cache.Store(r.Context(), set.Fingerprint(), req.Text, &cache.CachedResult{
			MaskedText: masked,
			Findings:   findings,
		})
	}

	if resp.TotalFindings > 0 {
		log.Info("sensitive data masked",
			zap.Int("findings", resp.TotalFindings),
			zap.Float64("processing_ms", resp.ProcessingMS),
		)
	}

	s.finishScrub(r, requestID, resp)
	writeJSON(w, http.StatusOK, resp)
}

// finishScrub updates counters and notifies dashboard clients
func (s *Server) finishScrub(r *http.Request, requestID string, resp scrubResponse) {
	s.totalScrubs.Add(1)
	s.hub.BroadcastEvent(events.Event{
		Type:      events.EventTypeScrubResult,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: events.ScrubResultEvent{
			RequestID:     requestID,
			ClientIP:      getClientIP(r),
			Findings:      resp.Findings,
			TotalFindings: resp.TotalFindings,
			CacheHit:      resp.CacheHit,
			ProcessingMS:  resp.ProcessingMS,
		},
	})
}

// handleScrubBatch masks a list of text payloads in one request
func (s *Server) handleScrubBatch(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	var req batchScrubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts is required")
		return
	}

	set := s.activeRules()

	items := make([]batchScrubItem, len(req.Texts))
	var missedTexts []string
	var missedResults []*cache.CachedResult
	for i, text := range req.Texts {
		if s.cache != nil {
			if hit := s.cache.Get(r.Context(), set.Fingerprint(), text); hit != nil {
				items[i] = batchScrubItem{
					MaskedText:    hit.MaskedText,
					Findings:      hit.Findings,
					TotalFindings: findingsTotal(hit.Findings),
					CacheHit:      true,
				}
				continue
			}
		}

		masked, findings := set.Inspect(text)
		items[i] = batchScrubItem{
			MaskedText:    masked,
			Findings:      findings,
			TotalFindings: findingsTotal(findings),
		}
		if s.cache != nil {
			missedTexts = append(missedTexts, text)
			missedResults = append(missedResults, &cache.CachedResult{
				MaskedText: masked,
				Findings:   findings,
			})
		}
	}

	if len(missedTexts) > 0 {
		// Failures are logged by the cache itself
		s.cache.StoreBatch(r.Context(), set.Fingerprint(), missedTexts, missedResults)
	}

	var merged []rules.Finding
	total := 0
	for _, item := range items {
		total += item.TotalFindings
		merged = mergeFindings(merged, item.Findings)
	}

	resp := batchScrubResponse{
		Results:       items,
		Fingerprint:   set.Fingerprint(),
		TotalFindings: total,
		ProcessingMS:  elapsedMS(start),
	}

	if total > 0 {
		log.Info("sensitive data masked",
			zap.Int("texts", len(req.Texts)),
			zap.Int("findings", total),
			zap.Float64("processing_ms", resp.ProcessingMS),
		)
	}

	s.totalScrubs.Add(int64(len(req.Texts)))
	s.hub.BroadcastEvent(events.Event{
		Type:      events.EventTypeScrubResult,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: events.ScrubResultEvent{
			RequestID:     requestID,
			ClientIP:      getClientIP(r),
			Findings:      merged,
			TotalFindings: total,
			ProcessingMS:  resp.ProcessingMS,
		},
	})

	writeJSON(w, http.StatusOK, resp)
}

// mergeFindings folds b into a, summing counts per rule
func mergeFindings(a, b []rules.Finding) []rules.Finding {
	for _, f := range b {
		found := false
		for i := range a {
			if a[i].Rule == f.Rule {
				a[i].Count += f.Count
				found = true
				break
			}
		}
		if !found {
			a = append(a, f)
		}
	}
	return a
}

// handleScrubFile scrubs a file on the server's filesystem
func (s *Server) handleScrubFile(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req scrubFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.InputPath == "" || req.OutputPath == "" {
		writeError(w, http.StatusBadRequest, "input_path and output_path are required")
		return
	}
	if req.Mode == "" {
		req.Mode = scrub.ModeParallel
	}
	if req.Mode != scrub.ModeParallel && req.Mode != scrub.ModeMmap {
		writeError(w, http.StatusBadRequest, "mode must be \"parallel\" or \"mmap\"")
		return
	}

	set := s.activeRules()
	engine := scrub.New(set, s.engineConfig(), s.logger)

	var outcome *scrub.Outcome
	var err error
	if req.Mode == scrub.ModeMmap {
		outcome, err = engine.FileMmap(r.Context(), req.InputPath, req.OutputPath)
	} else {
		outcome, err = engine.File(r.Context(), req.InputPath, req.OutputPath)
	}
	if err != nil {
		log.Error("file scrub failed",
			zap.String("input_path", req.InputPath),
			zap.String("mode", req.Mode),
			zap.Error(err),
		)

		var inputErr *scrub.InputError
		var outputErr *scrub.OutputError
		switch {
		case errors.As(err, &inputErr):
			status := http.StatusBadRequest
			if errors.Is(err, os.ErrNotExist) {
				status = http.StatusNotFound
			}
			writeError(w, status, err.Error())
		case errors.As(err, &outputErr):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.totalFileJobs.Add(1)

	if s.store != nil {
		run := &audit.Run{
			Mode:             outcome.Mode,
			InputPath:        req.InputPath,
			OutputPath:       req.OutputPath,
			LinesProcessed:   outcome.LinesProcessed,
			BytesWritten:     outcome.BytesWritten,
			RepairedLines:    outcome.RepairedLines,
			Chunks:           outcome.Chunks,
			Workers:          outcome.Workers,
			DurationMs:       outcome.Duration.Milliseconds(),
			RuleCount:        set.Len(),
			RulesFingerprint: set.Fingerprint(),
		}
		if err := s.store.Insert(r.Context(), run); err != nil {
			log.Warn("failed to record run", zap.Error(err))
		}
	}

	s.hub.BroadcastEvent(events.Event{
		Type:      events.EventTypeFileJob,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: events.FileJobEvent{
			RequestID:      requestID,
			ClientIP:       getClientIP(r),
			Mode:           outcome.Mode,
			InputPath:      req.InputPath,
			OutputPath:     req.OutputPath,
			LinesProcessed: outcome.LinesProcessed,
			BytesWritten:   outcome.BytesWritten,
			RepairedLines:  outcome.RepairedLines,
			Chunks:         outcome.Chunks,
			Workers:        outcome.Workers,
			DurationMS:     float64(outcome.Duration.Nanoseconds()) / 1e6,
		},
	})

	writeJSON(w, http.StatusOK, scrubFileResponse{
		Outcome:    outcome,
		OutputPath: req.OutputPath,
		DurationMS: float64(outcome.Duration.Nanoseconds()) / 1e6,
	})
}

// handleRules lists the active rule set
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	set := s.activeRules()
	writeJSON(w, http.StatusOK, rulesResponse{
		Count:       set.Len(),
		Fingerprint: set.Fingerprint(),
		Rules:       set.Rules(),
	})
}

// handleRulesReload reloads the rule pack from disk
func (s *Server) handleRulesReload(w http.ResponseWriter, r *http.Request) {
	if err := s.ReloadRules(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	set := s.activeRules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       set.Len(),
		"fingerprint": set.Fingerprint(),
	})
}

// handleCacheClear drops every cached result
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusBadRequest, "cache is not enabled")
		return
	}
	if err := s.cache.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleRuns lists recent file scrub runs from the audit trail
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusBadRequest, "audit is not enabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// handleStats reports server, cache, and audit statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	set := s.activeRules()

	stats := map[string]interface{}{
		"status":          "healthy",
		"uptime":          time.Since(s.startTime).Round(time.Second).String(),
		"total_requests":  s.totalRequests.Load(),
		"total_scrubs":    s.totalScrubs.Load(),
		"total_file_jobs": s.totalFileJobs.Load(),
		"memory_usage":    memoryUsage(),
		"rules": map[string]interface{}{
			"count":       set.Len(),
			"fingerprint": set.Fingerprint(),
		},
	}

	if s.config.Events.Enabled {
		hubStats := s.hub.GetStats()
		stats["websocket"] = map[string]interface{}{
			"active_connections": hubStats.ActiveConnections,
			"total_connections":  hubStats.TotalConnections,
			"total_broadcasts":   hubStats.TotalBroadcasts,
		}
	}

	if s.cache != nil {
		if cacheStats, err := s.cache.GetStats(r.Context()); err != nil {
			s.logger.Warn("failed to collect cache stats", zap.Error(err))
		} else {
			stats["cache"] = cacheStats
		}
	}

	if s.store != nil {
		if auditStats, err := s.store.GetStats(r.Context()); err != nil {
			s.logger.Warn("failed to collect audit stats", zap.Error(err))
		} else {
			stats["audit"] = auditStats
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleWebSocket handles WebSocket connections for the dashboard
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}

// findingsTotal sums match counts across findings
func findingsTotal(findings []rules.Finding) int {
	total := 0
	for _, f := range findings {
		total += f.Count
	}
	return total
}

// elapsedMS returns milliseconds since start
func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
