package web

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/7aylabs/popchain/internal/adapters/reporting"
	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/services/ledger"
	"github.com/7aylabs/popchain/internal/core/services/triangulation"
	"github.com/7aylabs/popchain/internal/crypto"
)

// Handlers exposes the pipeline state as a JSON API.
type Handlers struct {
	Engine   *triangulation.Engine
	Ledger   *ledger.Ledger
	Exporter *reporting.PDFExporter
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetReporters lists all registered reporters.
func (h *Handlers) GetReporters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Reporters())
}

// GetDevices lists all tracked devices, most confident first.
func (h *Handlers) GetDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.Engine.TrackedDevices()
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	writeJSON(w, http.StatusOK, devices)
}

// GetDeviceHistory returns the bounded reading history for one device.
func (h *Handlers) GetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	macHash, ok := hashFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Engine.DeviceHistory(macHash))
}

// GetTrack returns the position track for one device.
func (h *Handlers) GetTrack(w http.ResponseWriter, r *http.Request) {
	macHash, ok := hashFromRequest(w, r)
	if !ok {
		return
	}
	track, found := h.Engine.Track(macHash)
	if !found {
		writeError(w, http.StatusNotFound, "no track for device")
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// GetReveals returns the recorded reveal history.
func (h *Handlers) GetReveals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Ledger.Reveals())
}

// GetStats returns headline pipeline counters.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reporter_count":      h.Engine.ReporterCount(),
		"device_count":        h.Engine.DeviceCount(),
		"active_device_count": h.Engine.ActiveDeviceCount(),
		"ghost_count":         h.Engine.GhostCount(),
		"pending_commitments": h.Ledger.PendingCount(),
		"reveal_count":        len(h.Ledger.Reveals()),
	})
}

// GetSurveyReport streams the PDF survey report.
func (h *Handlers) GetSurveyReport(w http.ResponseWriter, r *http.Request) {
	devices := h.Engine.TrackedDevices()
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	top := devices
	if len(top) > 10 {
		top = top[:10]
	}

	stateCounts := make(map[domain.DeviceState]uint32)
	for _, d := range devices {
		stateCounts[d.State]++
	}

	reporters := h.Engine.Reporters()
	active := uint32(0)
	for _, rep := range reporters {
		if rep.Active {
			active++
		}
	}

	pdf, err := h.Exporter.ExportSurvey(&reporting.SurveySummary{
		GeneratedAt:     time.Now(),
		ReporterCount:   h.Engine.ReporterCount(),
		ActiveReporters: active,
		DeviceCount:     h.Engine.DeviceCount(),
		StateCounts:     stateCounts,
		PendingCommits:  h.Ledger.PendingCount(),
		RevealCount:     len(h.Ledger.Reveals()),
		TopDevices:      top,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="presence-survey.pdf"`)
	w.Write(pdf)
}

func hashFromRequest(w http.ResponseWriter, r *http.Request) (crypto.H256, bool) {
	raw := strings.TrimPrefix(mux.Vars(r)["hash"], "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		writeError(w, http.StatusBadRequest, "malformed device hash")
		return crypto.ZeroH256, false
	}
	return crypto.NewH256(decoded), true
}
