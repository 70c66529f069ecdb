package reservation_api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-ledger/internal/auth"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) Purchase(ctx context.Context, purchaser, eventID string, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	args := m.Called(purchaser, eventID, req)
	res, _ := args.Get(0).(*models.PurchaseResult)
	return res, args.Error(1)
}

func (m *MockReservationService) RefundUnclaimed(ctx context.Context, eventID string, req models.RefundRequest) (*models.RefundResult, error) {
	args := m.Called(eventID, req)
	res, _ := args.Get(0).(*models.RefundResult)
	return res, args.Error(1)
}

func (m *MockReservationService) Tally(ctx context.Context, eventID string, weight uint64, purchaser string) (*models.WalletTally, error) {
	args := m.Called(eventID, weight, purchaser)
	res, _ := args.Get(0).(*models.WalletTally)
	return res, args.Error(1)
}

func serve(svc *MockReservationService, method, path, caller string, body any) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(svc, logger.Nop()).RegisterRoutes(r)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(auth.WithUserID(req.Context(), caller))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPurchase(t *testing.T) {
	svc := new(MockReservationService)
	req := models.PurchaseRequest{
		Groups: []models.TierGroup{{Weight: 1, Units: []models.UnitRequest{{TicketAddress: "t1", Denom: "x"}}}},
		Funds:  []models.Coin{{Denom: "x", Amount: 1000}},
	}
	svc.On("Purchase", "buyer", "ev1", req).Return(&models.PurchaseResult{EventID: "ev1"}, nil)

	w := serve(svc, http.MethodPost, "/events/ev1/reservations", "buyer", req)
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestPurchase_CapacityIs409(t *testing.T) {
	svc := new(MockReservationService)
	svc.On("Purchase", "buyer", "ev1", mock.Anything).Return(nil, models.ErrCapacityExceeded)

	w := serve(svc, http.MethodPost, "/events/ev1/reservations", "buyer", models.PurchaseRequest{})
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "capacity_exceeded", resp.Code)
	assert.Nil(t, resp.Data)
}

func TestPurchase_PartialResultReturnedWithError(t *testing.T) {
	svc := new(MockReservationService)
	partial := &models.PurchaseResult{EventID: "ev1", Groups: []models.GroupResult{{Weight: 1, Requested: 1, Admitted: []string{"t1"}}}}
	svc.On("Purchase", "buyer", "ev1", mock.Anything).Return(partial, models.ErrTicketAlreadyReserved)

	w := serve(svc, http.MethodPost, "/events/ev1/reservations", "buyer", models.PurchaseRequest{})
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Code string                `json:"code"`
		Data models.PurchaseResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ticket_already_reserved", resp.Code)
	assert.Equal(t, []string{"t1"}, resp.Data.Groups[0].Admitted)
}

func TestPurchase_InternalErrorHidesDetail(t *testing.T) {
	svc := new(MockReservationService)
	partial := &models.PurchaseResult{EventID: "ev1", Groups: []models.GroupResult{}}
	svc.On("Purchase", "buyer", "ev1", mock.Anything).Return(partial, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	w := serve(svc, http.MethodPost, "/events/ev1/reservations", "buyer", models.PurchaseRequest{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal error", resp.Error)
	assert.Equal(t, "internal_error", resp.Code)
	assert.NotNil(t, resp.Data)
}

func TestPurchase_BadBody(t *testing.T) {
	svc := new(MockReservationService)
	r := chi.NewRouter()
	NewHandler(svc, logger.Nop()).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/events/ev1/reservations", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything, mock.Anything)
}

func TestTally(t *testing.T) {
	svc := new(MockReservationService)
	svc.On("Tally", "ev1", uint64(3), "buyer").Return(&models.WalletTally{EventID: "ev1", Weight: 3, Purchaser: "buyer", Reserved: 2}, nil)

	w := serve(svc, http.MethodGet, "/events/ev1/tiers/3/tally/buyer", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)

	w = serve(svc, http.MethodGet, "/events/ev1/tiers/-1/tally/buyer", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
