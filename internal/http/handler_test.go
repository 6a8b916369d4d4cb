package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"govhub/internal/ledger"
	"govhub/internal/models"
	"govhub/internal/settlement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderAPI struct {
	info *models.PaymentInfo
	paid bool
}

func (f *fakeOrderAPI) CreateOrder(context.Context, ledger.Principal, string, ledger.Token, models.PaymentType) (*models.PaymentInfo, error) {
	return f.info, nil
}

func (f *fakeOrderAPI) GetOrder(context.Context, ledger.Principal, int64) (*models.PaymentOrder, error) {
	return nil, settlement.ErrOrderNotFound
}

func (f *fakeOrderAPI) ListOrders(context.Context, ledger.Principal, int, int, bool) (int64, bool, []models.QueryOrder, error) {
	return 0, false, nil, nil
}

func (f *fakeOrderAPI) CheckPaid(context.Context, ledger.Principal, int64) bool {
	return f.paid
}

type fakeSettlementAPI struct {
	confirmErr error
	refundErr  error
}

func (f *fakeSettlementAPI) Confirm(context.Context, int64) (bool, error) {
	if f.confirmErr != nil {
		return false, f.confirmErr
	}
	return true, nil
}

func (f *fakeSettlementAPI) Refund(context.Context, int64, ledger.Principal, []byte) (bool, error) {
	if f.refundErr != nil {
		return false, f.refundErr
	}
	return true, nil
}

type fakeDistributionAPI struct {
	createdID int64
}

func (f *fakeDistributionAPI) CreateDistributionModel(context.Context, *models.DistributionModel) (int64, error) {
	return f.createdID, nil
}

func (f *fakeDistributionAPI) ListDistributionRecords(context.Context, int64, int64, int) ([]models.DistributionRecord, error) {
	return nil, nil
}

var testPayerText = ledger.Principal([]byte{0x01, 0x02, 0x03}).String()

func newTestServer(orders OrderAPI, engine SettlementAPI, distributions DistributionAPI) *Server {
	return NewServer(NewHandler(orders, engine, distributions, "secret"))
}

func doRequest(t *testing.T, srv *Server, method, path, payer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if payer != "" {
		req.Header.Set("X-Payer", payer)
	}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeOrderAPI{}, &fakeSettlementAPI{}, &fakeDistributionAPI{})
	rec := doRequest(t, srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrderRequiresPayerHeader(t *testing.T) {
	srv := newTestServer(&fakeOrderAPI{}, &fakeSettlementAPI{}, &fakeDistributionAPI{})

	rec := doRequest(t, srv, http.MethodPost, "/payments/orders", "", `{"source":"dao-7","token":"ICP","paymentType":"dao_creation"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/payments/orders", "garbage!!!", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmErrorMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:        settlement.ErrOrderNotFound,
		http.StatusConflict:        settlement.ErrNotPayable,
		http.StatusGone:            settlement.ErrTimedOut,
		http.StatusPaymentRequired: settlement.ErrInsufficientFunds,
		http.StatusBadRequest:      ledger.ErrUnsupportedToken,
	}
	for wantStatus, confirmErr := range cases {
		srv := newTestServer(&fakeOrderAPI{}, &fakeSettlementAPI{confirmErr: confirmErr}, &fakeDistributionAPI{})
		rec := doRequest(t, srv, http.MethodPost, "/payments/orders/1/confirm", testPayerText, "")
		assert.Equal(t, wantStatus, rec.Code, "error %v", confirmErr)
	}
}

func TestConfirmSuccess(t *testing.T) {
	srv := newTestServer(&fakeOrderAPI{}, &fakeSettlementAPI{}, &fakeDistributionAPI{})
	rec := doRequest(t, srv, http.MethodPost, "/payments/orders/1/confirm", testPayerText, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"confirmed":true}`, rec.Body.String())
}

func TestRefundErrorMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusForbidden:       settlement.ErrNotOrderOwner,
		http.StatusConflict:        settlement.ErrNotRefundable,
		http.StatusPaymentRequired: settlement.ErrBalanceBelowFee,
		http.StatusBadGateway:      settlement.ErrRefundFailed,
	}
	for wantStatus, refundErr := range cases {
		srv := newTestServer(&fakeOrderAPI{}, &fakeSettlementAPI{refundErr: refundErr}, &fakeDistributionAPI{})
		rec := doRequest(t, srv, http.MethodPost, "/payments/orders/1/refund", testPayerText, `{"destination":"deadbeef"}`)
		assert.Equal(t, wantStatus, rec.Code, "error %v", refundErr)
	}
}

func TestRefundRejectsBadDestination(t *testing.T) {
	srv := newTestServer(&fakeOrderAPI{}, &fakeSettlementAPI{}, &fakeDistributionAPI{})
	rec := doRequest(t, srv, http.MethodPost, "/payments/orders/1/refund", testPayerText, `{"destination":"zzzz"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckOrderPaid(t *testing.T) {
	srv := newTestServer(&fakeOrderAPI{paid: true}, &fakeSettlementAPI{}, &fakeDistributionAPI{})
	rec := doRequest(t, srv, http.MethodGet, "/payments/orders/1/paid", testPayerText, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paid":true}`, rec.Body.String())
}

func TestCreateDistributionRequiresAdminToken(t *testing.T) {
	srv := newTestServer(&fakeOrderAPI{}, &fakeSettlementAPI{}, &fakeDistributionAPI{createdID: 5})
	body := `{"tokenCanisterId":"s57im-oyaaa-aaaas-akwma-cai"}`

	rec := doRequest(t, srv, http.MethodPost, "/distributions/", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/distributions/", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"modelId":5}`, rec.Body.String())
}
