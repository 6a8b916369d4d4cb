package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"govhub/internal/models"

	"github.com/go-chi/chi/v5"
)

type createDistributionRequest struct {
	TokenCanisterID     string            `json:"tokenCanisterId"`
	InitialDistribution map[string]string `json:"initialDistribution"`
	EmissionRate        *string           `json:"emissionRate"`
	UnlockSchedule      []unlockItem      `json:"unlockSchedule"`
}

type unlockItem struct {
	Timestamp int64  `json:"timestamp"`
	Addr      string `json:"addr"`
	Amount    string `json:"amount"`
}

type distributionRecordResponse struct {
	ID               int64  `json:"id"`
	BatchID          string `json:"batchId"`
	DistributionType string `json:"distributionType"`
	Recipient        string `json:"recipient"`
	Amount           string `json:"amount"`
	TxResult         string `json:"txResult"`
	CreatedAt        string `json:"createdAt"`
}

func (h *Handler) authorizeAdmin(r *http.Request) bool {
	if h.AdminToken == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == h.AdminToken
}

func (h *Handler) CreateDistribution(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(r) {
		writeError(w, http.StatusUnauthorized, "admin token required")
		return
	}

	var req createDistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.TokenCanisterID == "" {
		writeError(w, http.StatusBadRequest, "missing token canister id")
		return
	}

	model := &models.DistributionModel{
		TokenCanisterID:     req.TokenCanisterID,
		InitialDistribution: req.InitialDistribution,
		EmissionRate:        req.EmissionRate,
	}
	for _, item := range req.UnlockSchedule {
		if item.Addr == "" || item.Amount == "" {
			writeError(w, http.StatusBadRequest, "unlock entry requires addr and amount")
			return
		}
		model.UnlockSchedule = append(model.UnlockSchedule, models.UnlockEntry{
			UnlockTime: time.Unix(item.Timestamp, 0).UTC(),
			Addr:       item.Addr,
			Amount:     item.Amount,
		})
	}

	id, err := h.Distributions.CreateDistributionModel(r.Context(), model)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create distribution failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"modelId": id})
}

func (h *Handler) ListDistributionRecords(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(r) {
		writeError(w, http.StatusUnauthorized, "admin token required")
		return
	}

	modelID, err := strconv.ParseInt(chi.URLParam(r, "modelId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid model id")
		return
	}

	q := r.URL.Query()
	start, _ := strconv.ParseInt(q.Get("start"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))

	records, err := h.Distributions.ListDistributionRecords(r.Context(), modelID, start, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list distribution records failed")
		return
	}

	data := make([]distributionRecordResponse, 0, len(records))
	for _, record := range records {
		data = append(data, distributionRecordResponse{
			ID:               record.ID,
			BatchID:          record.BatchID,
			DistributionType: string(record.DistributionType),
			Recipient:        record.Recipient,
			Amount:           record.Amount,
			TxResult:         record.TxResult,
			CreatedAt:        record.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}
