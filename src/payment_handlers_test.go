package main

import (
	"esn/src/gateways/fonepay"
	"esn/src/gateways/khalti"
	"esn/src/issuer"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func newTestIssuer() *issuer.Issuer {
	rd, _ := redismock.NewClientMock()
	// not started: jobs stay queued so tests can count them
	return issuer.NewIssuer(issuer.New(rd))
}

func khaltiLookupServer(s *TestSuite, response string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), "/epayment/lookup/", r.URL.Path)
		assert.Equal(s.T(), "Key test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
}

func (s *TestSuite) TestKhaltiCallbackHappyPath() {
	srv := khaltiLookupServer(s, `{"status":"Completed","transaction_id":"tx1","total_amount":50000}`)
	defer srv.Close()
	khalti.NewClient(khalti.New(khalti.Config{BaseURL: srv.URL, SecretKey: "test-key"}))
	iss := newTestIssuer()

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "ticket_requests" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	router := setupRouter()
	paymentRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/khalti/callback?pidx=abc123&status=Completed&transaction_id=tx1&amount=50000&purchase_order_id=42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "https://esn.test/payment/success?id=42", w.Header().Get("Location"))
	assert.Equal(s.T(), 1, iss.Pending())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestKhaltiCallbackFailedPayment() {
	srv := khaltiLookupServer(s, `{"status":"Expired"}`)
	defer srv.Close()
	khalti.NewClient(khalti.New(khalti.Config{BaseURL: srv.URL, SecretKey: "test-key"}))
	iss := newTestIssuer()

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "ticket_requests" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	router := setupRouter()
	paymentRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/khalti/callback?pidx=abc123&purchase_order_id=42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "https://esn.test/payment/failed?id=42", w.Header().Get("Location"))
	assert.Equal(s.T(), 0, iss.Pending())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestKhaltiCallbackMissingParams() {
	router := setupRouter()
	paymentRoutes(router)

	for _, target := range []string{
		"/api/v1/payments/khalti/callback?purchase_order_id=42",
		"/api/v1/payments/khalti/callback?pidx=abc123",
		"/api/v1/payments/khalti/callback?pidx=abc123&purchase_order_id=not-a-number",
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", target, nil)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
		assert.Equal(s.T(), "missing_params", gjson.Get(w.Body.String(), "error").String())
	}
	// no verification and no database write may happen on input errors
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestKhaltiCallbackDuplicateDelivery() {
	srv := khaltiLookupServer(s, `{"status":"Completed","transaction_id":"tx1","total_amount":50000}`)
	defer srv.Close()
	khalti.NewClient(khalti.New(khalti.Config{BaseURL: srv.URL, SecretKey: "test-key"}))
	iss := newTestIssuer()

	// the conditional update matches zero rows on a request already paid
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "ticket_requests" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.Mock.ExpectCommit()

	router := setupRouter()
	paymentRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/khalti/callback?pidx=abc123&purchase_order_id=42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "https://esn.test/payment/success?id=42", w.Header().Get("Location"))
	assert.Equal(s.T(), 0, iss.Pending())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestKhaltiCallbackVerificationError() {
	srv := khaltiLookupServer(s, `{}`)
	srv.Close()
	khalti.NewClient(khalti.New(khalti.Config{BaseURL: srv.URL, SecretKey: "test-key"}))
	iss := newTestIssuer()

	router := setupRouter()
	paymentRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/khalti/callback?pidx=abc123&purchase_order_id=42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "https://esn.test/payment/failed?error=verification_failed", w.Header().Get("Location"))
	assert.Equal(s.T(), 0, iss.Pending())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestFonepayCallbackHappyPath() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(s.T(), "/api/merchantRequest/verificationMerchant", r.URL.Path)
		fmt.Fprint(w, "success_true")
	}))
	defer srv.Close()
	cfg := fonepay.Config{BaseURL: srv.URL, MerchantCode: "ESN001", SecretKey: "fp-secret", ReturnURL: "https://esn.test/api/v1/payments/fonepay/callback"}
	fonepay.NewClient(fonepay.New(cfg, fonepay.NewStrictVerifier(cfg)))
	iss := newTestIssuer()

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "ticket_requests" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	router := setupRouter()
	paymentRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/fonepay/callback?PRN=42&PID=ESN001&UID=uid-9&BID=bid-1&P_AMT=500.00", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "https://esn.test/payment/success?id=42", w.Header().Get("Location"))
	assert.Equal(s.T(), 1, iss.Pending())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestFonepayCallbackFractionalAmount() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "success_true")
	}))
	defer srv.Close()
	cfg := fonepay.Config{BaseURL: srv.URL, MerchantCode: "ESN001", SecretKey: "fp-secret"}
	fonepay.NewClient(fonepay.New(cfg, fonepay.NewStrictVerifier(cfg)))
	newTestIssuer()

	// 8.20 rupees must persist as 820 paisa, not 819
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "ticket_requests" SET`).
		WithArgs(int64(820), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	router := setupRouter()
	paymentRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/fonepay/callback?PRN=42&PID=ESN001&UID=uid-9&P_AMT=8.20", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "https://esn.test/payment/success?id=42", w.Header().Get("Location"))
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestPaisaFromRupees() {
	assert.Equal(s.T(), int64(820), paisaFromRupees("8.20"))
	assert.Equal(s.T(), int64(29), paisaFromRupees("0.29"))
	assert.Equal(s.T(), int64(50000), paisaFromRupees("500.00"))
	assert.Equal(s.T(), int64(500), paisaFromRupees("5"))
	assert.Equal(s.T(), int64(0), paisaFromRupees(""))
	assert.Equal(s.T(), int64(0), paisaFromRupees("not-a-number"))
}

func (s *TestSuite) TestFonepayCallbackVerificationFailed() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "failure")
	}))
	defer srv.Close()
	cfg := fonepay.Config{BaseURL: srv.URL, MerchantCode: "ESN001", SecretKey: "fp-secret"}
	fonepay.NewClient(fonepay.New(cfg, fonepay.NewStrictVerifier(cfg)))
	iss := newTestIssuer()

	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "ticket_requests" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	router := setupRouter()
	paymentRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/fonepay/callback?PRN=42&PID=ESN001&UID=uid-9", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.True(s.T(), strings.HasPrefix(location, "https://esn.test/payment/failed"))
	assert.Contains(s.T(), location, "id=42")
	assert.Contains(s.T(), location, "reason=verification_failed")
	assert.Equal(s.T(), 0, iss.Pending())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestFonepayCallbackMissingParams() {
	router := setupRouter()
	paymentRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/fonepay/callback?PID=ESN001&UID=uid-9", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusFound, w.Code)
	assert.Equal(s.T(), "https://esn.test/payment/failed?error=missing_params", w.Header().Get("Location"))
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}
