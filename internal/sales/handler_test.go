package sales

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

func newTestServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), 7)))
		})
	})
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestHandlerLifecycleEndpoints(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)

	createBody := `{
		"kind": "QUOTE",
		"document_date": "2026-06-01T00:00:00Z",
		"customer_id": 42,
		"store_id": 1,
		"currency": "EUR",
		"valid_until": "2026-07-01T00:00:00Z",
		"lines": [{"product_id": 11, "quantity": 10, "unit_price": 100}]
	}`

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/documents", createBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, "DRAFT", body["status"])
	require.Equal(t, "QT-0601-0001", body["ref_number"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/documents/"+id+"/send", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "SENT", body["status"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/documents/"+id+"/send", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/documents/"+id+"/reject", `{"reason": ""}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/documents/"+id+"/accept", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ACCEPTED", body["status"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/documents/"+id+"/convert", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "inv-1", body["converted_invoice_id"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/documents/"+id+"/convert", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/documents?kind=QUOTE", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	docs, _ := body["documents"].([]any)
	require.Len(t, docs, 1)
}

func TestHandlerNotFoundAndBadID(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/documents/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/documents/3f1f9da3-0c5f-4f5f-9a57-0b2e9c6f0a11", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerValidation(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/documents", `{"kind": "QUOTE"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/documents", `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/documents/import", `{"rows": []}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandlerReopenExpired(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, createRequest("QUOTE", timePtr(f.now.Add(time.Hour))), 7)
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, doc.ID, 7)
	require.NoError(t, err)
	f.advance(2 * time.Hour)

	deadline := f.now.Add(72 * time.Hour).Format(time.RFC3339)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/documents/"+doc.ID.String()+"/reopen", `{"valid_until": "`+deadline+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "DRAFT", body["status"])
}

func TestHandlerImport(t *testing.T) {
	f := newFixture(t)
	srv := newTestServer(t, f)

	rows := `{"rows": [
		{"kind": "QUOTE", "document_date": "2026-06-01T00:00:00Z", "customer_id": 1, "store_id": 1, "currency": "EUR",
		 "lines": [{"product_id": 1, "quantity": 1, "unit_price": 5}]},
		{"kind": "ORDER", "document_date": "2026-06-01T00:00:00Z", "customer_id": 2, "store_id": 1, "currency": "EUR",
		 "lines": [{"product_id": 2, "quantity": 2, "unit_price": 7.5}]}
	]}`

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/documents/import", rows)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results, _ := body["results"].([]any)
	require.Len(t, results, 2)
	require.Len(t, f.repo.docs, 2)

	for _, d := range f.repo.docs {
		require.True(t, d.TotalAmount.GreaterThan(decimal.Zero))
	}
}
