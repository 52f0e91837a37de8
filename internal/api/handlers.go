package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"forage/internal/sim"
)

// Handler methods for routerHandlers

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"arena":    h.engine.GetStats(),
		"eventLog": h.engine.GetEventLogStats(),
	})
}

// handleGetCaches lists live caches. ?min_blocks=N filters small ones.
func (h *routerHandlers) handleGetCaches(w http.ResponseWriter, r *http.Request) {
	minBlocks := 0
	if v := r.URL.Query().Get("min_blocks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "min_blocks must be a non-negative integer", http.StatusBadRequest)
			return
		}
		minBlocks = n
	}

	snap := h.engine.GetSnapshot()
	caches := make([]sim.CacheSnapshot, 0, len(snap.Caches))
	for _, c := range snap.Caches {
		if c.Blocks >= minBlocks {
			caches = append(caches, c)
		}
	}
	writeJSON(w, map[string]any{
		"tick":   snap.Stats.Tick,
		"count":  len(caches),
		"caches": caches,
	})
}

func (h *routerHandlers) handleCreateCaches(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.CreateCaches()
	if errors.Is(err, sim.ErrDynamicDisabled) {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("❌ On-demand cache creation failed: %v", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("📦 On-demand pass at t=%d: %d created, %d discarded", report.Tick, len(report.Created), report.Discarded)
	writeJSON(w, report)
}

func (h *routerHandlers) handleArenaPNG(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var buf bytes.Buffer
	if err := h.renderer.WritePNG(&buf, h.engine.GetSnapshot()); err != nil {
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
