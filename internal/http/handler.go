package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"govhub/internal/ledger"
	"govhub/internal/models"
	"govhub/internal/services"
	"govhub/internal/settlement"

	"github.com/go-chi/chi/v5"
)

// OrderAPI, SettlementAPI and DistributionAPI are the service surfaces the
// handlers call; the concrete types in services, settlement and store
// implement them.
type OrderAPI interface {
	CreateOrder(ctx context.Context, payer ledger.Principal, source string, token ledger.Token, paymentType models.PaymentType) (*models.PaymentInfo, error)
	GetOrder(ctx context.Context, caller ledger.Principal, id int64) (*models.PaymentOrder, error)
	ListOrders(ctx context.Context, payer ledger.Principal, page, size int, desc bool) (int64, bool, []models.QueryOrder, error)
	CheckPaid(ctx context.Context, payer ledger.Principal, id int64) bool
}

type SettlementAPI interface {
	Confirm(ctx context.Context, orderID int64) (bool, error)
	Refund(ctx context.Context, orderID int64, caller ledger.Principal, to []byte) (bool, error)
}

type DistributionAPI interface {
	CreateDistributionModel(ctx context.Context, model *models.DistributionModel) (int64, error)
	ListDistributionRecords(ctx context.Context, modelID, start int64, limit int) ([]models.DistributionRecord, error)
}

type Handler struct {
	Orders        OrderAPI
	Settlement    SettlementAPI
	Distributions DistributionAPI
	AdminToken    string
}

type createOrderRequest struct {
	Source      string `json:"source"`
	Token       string `json:"token"`
	PaymentType string `json:"paymentType"`
}

type paymentInfoResponse struct {
	OrderID     int64  `json:"orderId"`
	Recipient   string `json:"recipient"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	PaymentType string `json:"paymentType"`
	CreatedTime string `json:"createdTime"`
}

type orderResponse struct {
	OrderID      int64  `json:"orderId"`
	Payer        string `json:"payer"`
	Recipient    string `json:"recipient,omitempty"`
	Token        string `json:"token"`
	Amount       int64  `json:"amount"`
	AmountPaid   int64  `json:"amountPaid"`
	PaymentType  string `json:"paymentType"`
	Source       string `json:"source"`
	Status       string `json:"status"`
	CreatedTime  string `json:"createdTime"`
	VerifiedTime string `json:"verifiedTime,omitempty"`
	SharedTime   string `json:"sharedTime,omitempty"`
}

func NewHandler(orders OrderAPI, engine SettlementAPI, distributions DistributionAPI, adminToken string) *Handler {
	return &Handler{
		Orders:        orders,
		Settlement:    engine,
		Distributions: distributions,
		AdminToken:    adminToken,
	}
}

func callerPrincipal(r *http.Request) (ledger.Principal, bool) {
	p, err := ledger.DecodePrincipal(r.Header.Get("X-Payer"))
	if err != nil {
		return nil, false
	}
	return p, true
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	payer, ok := callerPrincipal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid payer principal")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	token, err := ledger.ParseToken(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported token")
		return
	}

	info, err := h.Orders.CreateOrder(r.Context(), payer, req.Source, token, models.PaymentType(req.PaymentType))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingSource):
			writeError(w, http.StatusBadRequest, "missing source")
		case errors.Is(err, services.ErrUnpricedType):
			writeError(w, http.StatusBadRequest, "unknown payment type")
		default:
			writeError(w, http.StatusInternalServerError, "create order failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, paymentInfoResponse{
		OrderID:     info.ID,
		Recipient:   hex.EncodeToString(info.Recipient),
		Token:       info.Token,
		Amount:      info.Amount,
		PaymentType: string(info.PaymentType),
		CreatedTime: info.CreatedTime.Format(time.RFC3339),
	})
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ok, err := h.Settlement.Confirm(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, settlement.ErrNotPayable):
			writeError(w, http.StatusConflict, "order is not payable")
		case errors.Is(err, settlement.ErrTimedOut):
			writeError(w, http.StatusGone, "order verification window elapsed")
		case errors.Is(err, settlement.ErrInsufficientFunds):
			writeError(w, http.StatusPaymentRequired, "insufficient funds received")
		case errors.Is(err, ledger.ErrUnsupportedToken):
			writeError(w, http.StatusBadRequest, "unsupported token")
		default:
			writeError(w, http.StatusInternalServerError, "confirm failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"confirmed": ok})
}

type refundRequest struct {
	Destination string `json:"destination"`
}

func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid payer principal")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	destination, err := hex.DecodeString(req.Destination)
	if err != nil || len(destination) == 0 {
		writeError(w, http.StatusBadRequest, "invalid destination")
		return
	}

	refunded, err := h.Settlement.Refund(r.Context(), orderID, caller, destination)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, settlement.ErrNotOrderOwner):
			writeError(w, http.StatusForbidden, "caller is not the order owner")
		case errors.Is(err, settlement.ErrNotRefundable):
			writeError(w, http.StatusConflict, "order is not refundable")
		case errors.Is(err, settlement.ErrNothingToRefund):
			writeError(w, http.StatusBadRequest, "order amount is zero")
		case errors.Is(err, settlement.ErrBalanceBelowFee):
			writeError(w, http.StatusPaymentRequired, "balance below transfer fee")
		case errors.Is(err, settlement.ErrRefundFailed):
			writeError(w, http.StatusBadGateway, "refund transfer failed")
		default:
			writeError(w, http.StatusInternalServerError, "refund failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"refunded": refunded})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid payer principal")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.Orders.GetOrder(r.Context(), caller, orderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotOrderViewer):
			writeError(w, http.StatusForbidden, "caller may not view this order")
		default:
			writeError(w, http.StatusNotFound, "order not found")
		}
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(order, nil))
}

// CheckOrderPaid is the yes/no settlement probe other services poll before
// unlocking whatever the order paid for.
func (h *Handler) CheckOrderPaid(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid payer principal")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"paid": h.Orders.CheckPaid(r.Context(), caller, orderID)})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerPrincipal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid payer principal")
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	desc := q.Get("sort") != "asc"

	total, hasMore, orders, err := h.Orders.ListOrders(r.Context(), caller, page, size, desc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list orders failed")
		return
	}

	data := make([]orderResponse, 0, len(orders))
	for i := range orders {
		data = append(data, orderToResponse(&orders[i].PaymentOrder, orders[i].Recipient))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"hasMore": hasMore,
		"data":    data,
	})
}

func orderToResponse(order *models.PaymentOrder, recipient []byte) orderResponse {
	resp := orderResponse{
		OrderID:     order.ID,
		Payer:       order.Payer,
		Token:       order.Token,
		Amount:      order.Amount,
		AmountPaid:  order.AmountPaid,
		PaymentType: string(order.PaymentType),
		Source:      order.Source,
		Status:      string(order.Status),
		CreatedTime: order.CreatedTime.Format(time.RFC3339),
	}
	if recipient != nil {
		resp.Recipient = hex.EncodeToString(recipient)
	}
	if order.VerifiedTime != nil {
		resp.VerifiedTime = order.VerifiedTime.Format(time.RFC3339)
	}
	if order.SharedTime != nil {
		resp.SharedTime = order.SharedTime.Format(time.RFC3339)
	}
	return resp
}
