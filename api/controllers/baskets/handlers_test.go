package baskets

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternseek/ecommerce/api/middleware"
	"github.com/patternseek/ecommerce/internal/basket"
	"github.com/patternseek/ecommerce/internal/charge"
	"github.com/patternseek/ecommerce/internal/vatnumber"
	"github.com/patternseek/ecommerce/internal/vatrates"
	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
)

type stubLocator struct{}

func (stubLocator) CountryForIP(ctx context.Context, ip string) string {
	if ip == "2.136.0.1" {
		return "ES"
	}
	return ""
}

type stubVatNumbers struct {
	result vatnumber.Result
}

func (s stubVatNumbers) Validate(ctx context.Context, country, number string) (vatnumber.Result, error) {
	return s.result, nil
}

type stubCharger struct {
	txn *models.Transaction
	err error
	req charge.Request
}

func (s *stubCharger) Charge(ctx context.Context, ledger *basket.Ledger, req charge.Request) (*models.Transaction, error) {
	s.req = req
	return s.txn, s.err
}

type stubTransactions struct {
	txn *models.Transaction
	err error
}

func (s stubTransactions) GetByBasketID(ctx context.Context, basketID uuid.UUID) (*models.Transaction, error) {
	return s.txn, s.err
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestService(t *testing.T) basket.Service {
	t.Helper()
	table, err := vatrates.Default()
	require.NoError(t, err)
	svc, err := basket.NewService(basket.ServiceParams{
		Config: basket.Config{
			VendorCountry: "GB",
			VendorVatRate: decimal.RequireFromString("0.2"),
			Rates:         table,
		},
		Registry: basket.NewRegistry(),
		Locator:  stubLocator{},
		VatNumbers: stubVatNumbers{result: vatnumber.Result{
			Number: "B12345678", Country: "ES", Status: enums.VatNumberStatusValid,
		}},
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func newTestRouter(svc basket.Service, gate Charger, txns TransactionReader) http.Handler {
	logg := logger.Nop()
	r := chi.NewRouter()
	r.Post("/baskets", BasketCreate(svc, logg))
	r.Get("/baskets/{basketID}", BasketFetch(svc, logg))
	r.Post("/baskets/{basketID}/items", BasketAddItems(svc, logg))
	r.Put("/baskets/{basketID}/address", BasketSetAddress(svc, logg))
	r.Post("/baskets/{basketID}/vat-number", BasketCheckVatNumber(svc, logg))
	r.Post("/baskets/{basketID}/charge", BasketCharge(svc, gate, logg))
	r.Get("/baskets/{basketID}/transaction", BasketTransaction(txns, logg))
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any, ip string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ip != "" {
		req = req.WithContext(middleware.WithClientIP(req.Context(), ip))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decodeBasket(t *testing.T, env envelope) basketResponse {
	t.Helper()
	var out basketResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

var eServiceBody = map[string]any{
	"items": []map[string]any{{
		"description":  "Some online service",
		"net_price":    "100",
		"quantity":     1,
		"product_type": "electronic_services",
	}},
}

func TestBasketLifecycle(t *testing.T) {
	h := newTestRouter(newTestService(t), &stubCharger{}, stubTransactions{})

	rec, env := do(t, h, http.MethodPost, "/baskets", eServiceBody, "2.136.0.1")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBasket(t, env)
	assert.Equal(t, "121.00", created.Total)
	assert.True(t, created.RequiresLocationProof)
	assert.False(t, created.AddressReady)
	assert.Equal(t, "ES", created.Evidence.IPCountry)
	require.Len(t, created.Items, 1)
	assert.Equal(t, enums.VatTreatmentCustomerRate, created.Items[0].VatTreatment)

	path := "/baskets/" + created.ID.String()
	rec, env = do(t, h, http.MethodPut, path+"/address", map[string]any{
		"line1": "addressLine1", "city": "townOrCity", "postal_code": "postCode", "country": "gb",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	withAddress := decodeBasket(t, env)
	assert.Equal(t, "120.00", withAddress.Total)
	assert.True(t, withAddress.AddressReady)
	require.NotNil(t, withAddress.Address)

	rec, env = do(t, h, http.MethodPost, path+"/items", map[string]any{
		"items": []map[string]any{{
			"description": "Book", "net_price": "9.99", "quantity": 2, "product_type": "delivered_goods",
		}},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "143.98", decodeBasket(t, env).Total)

	rec, env = do(t, h, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBasket(t, env).Items, 2)
}

func TestBasketCheckVatNumber(t *testing.T) {
	h := newTestRouter(newTestService(t), &stubCharger{}, stubTransactions{})

	_, env := do(t, h, http.MethodPost, "/baskets", eServiceBody, "")
	created := decodeBasket(t, env)

	rec, env := do(t, h, http.MethodPost, "/baskets/"+created.ID.String()+"/vat-number", map[string]any{
		"country": "ES", "number": "B12345678",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBasket(t, env)
	assert.Equal(t, "100.00", out.Total)
	assert.Equal(t, enums.VatNumberStatusValid, out.VatNumber.Status)
	assert.True(t, out.Items[0].IsBusinessBuyer)
}

func TestBasketValidation(t *testing.T) {
	h := newTestRouter(newTestService(t), &stubCharger{}, stubTransactions{})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name:   "empty items",
			method: http.MethodPost,
			path:   "/baskets",
			body:   map[string]any{"items": []any{}},
			status: http.StatusBadRequest,
			code:   string(pkgerrors.CodeValidation),
		},
		{
			name:   "negative price",
			method: http.MethodPost,
			path:   "/baskets",
			body: map[string]any{"items": []map[string]any{{
				"description": "x", "net_price": "-1", "quantity": 1, "product_type": "delivered_goods",
			}}},
			status: http.StatusBadRequest,
			code:   string(pkgerrors.CodeValidation),
		},
		{
			name:   "unknown product type",
			method: http.MethodPost,
			path:   "/baskets",
			body: map[string]any{"items": []map[string]any{{
				"description": "x", "net_price": "1", "quantity": 1, "product_type": "gift_cards",
			}}},
			status: http.StatusBadRequest,
			code:   string(pkgerrors.CodeValidation),
		},
		{
			name:   "bad basket id",
			method: http.MethodGet,
			path:   "/baskets/not-a-uuid",
			status: http.StatusBadRequest,
			code:   string(pkgerrors.CodeValidation),
		},
		{
			name:   "unknown basket",
			method: http.MethodGet,
			path:   "/baskets/" + uuid.NewString(),
			status: http.StatusNotFound,
			code:   string(pkgerrors.CodeNotFound),
		},
		{
			name:   "charge without instrument",
			method: http.MethodPost,
			path:   "/baskets/" + uuid.NewString() + "/charge",
			body:   map[string]any{"client_email": "buyer@example.com"},
			status: http.StatusBadRequest,
			code:   string(pkgerrors.CodeValidation),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, h, tc.method, tc.path, tc.body, "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestBasketCharge(t *testing.T) {
	svc := newTestService(t)
	txn := &models.Transaction{
		ID:        uuid.New(),
		ChargeID:  "pi_123",
		Amount:    decimal.RequireFromString("120"),
		VatAmount: decimal.RequireFromString("20"),
		Currency:  "GBP",
	}
	gate := &stubCharger{txn: txn}
	h := newTestRouter(svc, gate, stubTransactions{})

	_, env := do(t, h, http.MethodPost, "/baskets", eServiceBody, "")
	created := decodeBasket(t, env)
	txn.BasketID = created.ID

	rec, env := do(t, h, http.MethodPost, "/baskets/"+created.ID.String()+"/charge", map[string]any{
		"payment_method_id": " pm_card_gb ",
		"client_email":      "buyer@example.com",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var out transactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "120.00", out.Amount)
	assert.Equal(t, "pi_123", out.ChargeID)
	assert.Equal(t, "pm_card_gb", gate.req.PaymentMethodID)
	assert.Equal(t, "buyer@example.com", gate.req.ClientEmail)
}

func TestBasketChargeRecordFailureStillCreated(t *testing.T) {
	svc := newTestService(t)
	txn := &models.Transaction{ID: uuid.New(), ChargeID: "pi_123", Currency: "GBP"}
	gate := &stubCharger{txn: txn, err: pkgerrors.New(pkgerrors.CodeDependency, "record transaction")}
	h := newTestRouter(svc, gate, stubTransactions{})

	_, env := do(t, h, http.MethodPost, "/baskets", eServiceBody, "")
	created := decodeBasket(t, env)

	rec, _ := do(t, h, http.MethodPost, "/baskets/"+created.ID.String()+"/charge", map[string]any{
		"payment_method_id": "pm_card_gb",
	}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestBasketChargeErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   pkgerrors.Code
	}{
		{"not ready", pkgerrors.New(pkgerrors.CodeBasketNotReady, "basket is not ready for payment"), http.StatusUnprocessableEntity, pkgerrors.CodeBasketNotReady},
		{"declined", pkgerrors.New(pkgerrors.CodePaymentDeclined, "declined").WithDetails(map[string]any{"reason": "insufficient_funds"}), http.StatusPaymentRequired, pkgerrors.CodePaymentDeclined},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t)
			h := newTestRouter(svc, &stubCharger{err: tc.err}, stubTransactions{})

			_, env := do(t, h, http.MethodPost, "/baskets", eServiceBody, "")
			created := decodeBasket(t, env)

			rec, env := do(t, h, http.MethodPost, "/baskets/"+created.ID.String()+"/charge", map[string]any{
				"payment_method_id": "pm_card_gb",
			}, "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, string(tc.code), env.Error.Code)
		})
	}
}

func TestBasketTransaction(t *testing.T) {
	id := uuid.New()
	txn := &models.Transaction{ID: uuid.New(), BasketID: id, ChargeID: "pi_9", Amount: decimal.NewFromInt(100), Currency: "GBP", ManualReviewRequired: true}
	h := newTestRouter(newTestService(t), &stubCharger{}, stubTransactions{txn: txn})

	rec, env := do(t, h, http.MethodGet, "/baskets/"+id.String()+"/transaction", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out transactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, id, out.BasketID)
	assert.True(t, out.ManualReviewRequired)

	h = newTestRouter(newTestService(t), &stubCharger{}, stubTransactions{err: pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")})
	rec, _ = do(t, h, http.MethodGet, "/baskets/"+id.String()+"/transaction", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
