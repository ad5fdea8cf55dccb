package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	jwttoken "copyroom/internal/jwt_token"
	"copyroom/internal/ledger/handler"
	"copyroom/internal/ledger/service"
	"copyroom/internal/ledger/store/memory"
	"copyroom/internal/ledger/wallet"
	"copyroom/internal/platform/metrics"
	id "copyroom/pkg/domain"
	"copyroom/pkg/platform/middleware/request"
	"copyroom/pkg/testutil"
)

func newTestRouter(t *testing.T, checks ...healthCheck) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := wallet.NewMemory()
	w.Fund(common.HexToAddress("0x00000000000000000000000000000000000000a1"), id.NewAmount(100))

	svc, err := service.New(memory.NewLedger(), w, service.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EnsureOwner(context.Background(), common.HexToAddress("0x00000000000000000000000000000000000000f0")); err != nil {
		t.Fatal(err)
	}

	jwtService := jwttoken.NewJWTService("test-key", "copyroom")
	reg := prometheus.NewRegistry()
	return newRouter(routerDeps{
		logger:    log,
		registry:  reg,
		metrics:   metrics.New(reg),
		validator: jwttoken.NewJWTServiceAdapter(jwtService),
		ledger:    handler.New(svc, log),
		health:    checks,
	}), jwtService
}

func TestRouter(t *testing.T) {
	testutil.Given(t, "the assembled router", func(t *testing.T) {
		router, jwtService := newTestRouter(t)

		testutil.When(t, "calling a ledger route without a token", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/bank/deposit", map[string]string{"amount": "1"}))

			testutil.Then(t, "it should be rejected", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusUnauthorized)
			})
		})

		testutil.When(t, "calling a ledger route with a valid token", func(t *testing.T) {
			token, err := jwtService.GenerateAccessToken(common.HexToAddress("0x00000000000000000000000000000000000000a1"), time.Minute)
			if err != nil {
				t.Fatal(err)
			}
			req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/bank/deposit", map[string]string{"amount": "7"})
			req.Header.Set("Authorization", "Bearer "+token)
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "the deposit is credited to the token subject", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				resp := testutil.UnmarshalResponse[handler.BalanceResponse](t, rec)
				if resp.Balance != "7" {
					t.Fatalf("expected balance 7, got %s", resp.Balance)
				}
				if rec.Header().Get(request.HeaderRequestID) == "" {
					t.Fatal("expected a request id header")
				}
			})
		})

		testutil.When(t, "scraping metrics", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "http metrics are exposed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				if !strings.Contains(rec.Body.String(), "copyroom_http_requests_total") {
					t.Fatal("expected copyroom_http_requests_total in metrics output")
				}
			})
		})
	})
}

func TestHealth(t *testing.T) {
	testutil.Given(t, "healthy dependencies", func(t *testing.T) {
		router, _ := newTestRouter(t, healthCheck{name: "db", check: func(context.Context) error { return nil }})
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

		testutil.Then(t, "it should report ok", func(t *testing.T) {
			testutil.AssertStatusOK(t, rec)
		})
	})

	testutil.Given(t, "a failing dependency", func(t *testing.T) {
		router, _ := newTestRouter(t, healthCheck{name: "redis", check: func(context.Context) error { return errors.New("connection refused") }})
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

		testutil.Then(t, "it should report unavailable", func(t *testing.T) {
			testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
			body := testutil.UnmarshalErrorResponse(t, rec)
			if body["redis"] != "connection refused" {
				t.Fatalf("unexpected body %v", body)
			}
		})
	})
}
