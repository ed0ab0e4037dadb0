package marketplace_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenledger/greenledger-api/internal/domain/credit"
	"github.com/greenledger/greenledger-api/internal/domain/ledger"
	"github.com/greenledger/greenledger-api/internal/domain/marketplace"
	"github.com/greenledger/greenledger-api/internal/domain/overview"
	"github.com/greenledger/greenledger-api/internal/domain/user"
	"github.com/greenledger/greenledger-api/internal/middleware"
	"github.com/greenledger/greenledger-api/internal/pkg/archive"
	"github.com/greenledger/greenledger-api/internal/pkg/jwt"
	"github.com/greenledger/greenledger-api/internal/pkg/lockmgr"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := credit.NewStore(credit.NewMemoryRepository())
	l := ledger.New(ledger.NewMemoryRepository())
	jwtService := jwt.NewService("test-secret", time.Hour)
	userService := user.NewService(user.NewMemoryRepository(), jwtService)
	engine := marketplace.NewEngine(store, l, lockmgr.New(200*time.Millisecond), userService)

	archiveStore, err := archive.NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("archive store: %v", err)
	}

	userHandler := user.NewHandler(userService)
	marketHandler := marketplace.NewHandler(engine)
	overviewHandler := overview.NewHandler(overview.NewAggregator(store), l, userService, archiveStore)
	auth := middleware.Auth(jwtService)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", userHandler.Routes())
		r.Mount("/producer", marketHandler.ProducerRoutes(auth))
		r.Mount("/buyer", marketHandler.BuyerRoutes(auth))
		r.Mount("/credits", marketHandler.CreditRoutes(auth))
		r.Mount("/regulator", overviewHandler.Routes(auth))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func login(t *testing.T, srv *httptest.Server, username, role string) string {
	t.Helper()

	status, env := call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"role":     role,
	})
	if status != http.StatusOK {
		t.Fatalf("login %s/%s: status %d", username, role, status)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("login %s/%s: no token in %s", username, role, env.Data)
	}
	return data.Token
}

func TestFullMarketplaceFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	producer := login(t, srv, "h2-plant-1", "producer")
	buyer := login(t, srv, "steelworks", "buyer")
	regulator := login(t, srv, "inspector", "regulator")

	status, env := call(t, srv, http.MethodPost, "/api/producer/mint-credit", producer, map[string]interface{}{
		"batch_id":        "B1",
		"units":           100,
		"production_date": "2024-01-01",
	})
	if status != http.StatusCreated {
		t.Fatalf("mint: status %d, error %+v", status, env.Error)
	}

	var minted struct {
		Credit struct {
			ID            string `json:"id"`
			IntegrityHash string `json:"integrity_hash"`
		} `json:"credit"`
		TransactionHash string `json:"transaction_hash"`
	}
	if err := json.Unmarshal(env.Data, &minted); err != nil {
		t.Fatalf("decode mint response: %v", err)
	}
	if minted.Credit.IntegrityHash == "" || minted.TransactionHash == "" {
		t.Fatal("mint response must carry both hashes")
	}

	status, env = call(t, srv, http.MethodGet, "/api/buyer/available-credits", buyer, nil)
	if status != http.StatusOK {
		t.Fatalf("available: status %d", status)
	}
	var listing struct {
		Credits []struct {
			ID           string  `json:"id"`
			Units        float64 `json:"units"`
			ProducerName string  `json:"producer_name"`
		} `json:"credits"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Credits) != 1 || listing.Credits[0].ProducerName != "h2-plant-1" {
		t.Fatalf("listing wrong: %+v", listing.Credits)
	}

	status, env = call(t, srv, http.MethodPost, "/api/buyer/purchase-credit", buyer, map[string]interface{}{
		"credit_id": minted.Credit.ID,
		"units":     100,
	})
	if status != http.StatusOK {
		t.Fatalf("purchase: status %d, error %+v", status, env.Error)
	}

	// A second purchase of the same credit must conflict.
	status, env = call(t, srv, http.MethodPost, "/api/buyer/purchase-credit", buyer, map[string]interface{}{
		"credit_id": minted.Credit.ID,
		"units":     100,
	})
	if status != http.StatusConflict || env.Error == nil || env.Error.Code != "CONFLICT" {
		t.Fatalf("double purchase: status %d, error %+v", status, env.Error)
	}

	status, env = call(t, srv, http.MethodPost, fmt.Sprintf("/api/credits/%s/retire", minted.Credit.ID), buyer, nil)
	if status != http.StatusOK {
		t.Fatalf("retire: status %d, error %+v", status, env.Error)
	}

	status, env = call(t, srv, http.MethodGet, "/api/regulator/credits-overview", regulator, nil)
	if status != http.StatusOK {
		t.Fatalf("overview: status %d", status)
	}
	var ov struct {
		Overview struct {
			TotalCredits   int `json:"total_credits"`
			ActiveCredits  int `json:"active_credits"`
			RetiredCredits int `json:"retired_credits"`
		} `json:"overview"`
	}
	if err := json.Unmarshal(env.Data, &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.Overview.TotalCredits != 1 || ov.Overview.ActiveCredits != 0 || ov.Overview.RetiredCredits != 1 {
		t.Fatalf("overview wrong: %+v", ov.Overview)
	}

	status, env = call(t, srv, http.MethodGet, "/api/regulator/transactions", regulator, nil)
	if status != http.StatusOK {
		t.Fatalf("transactions: status %d", status)
	}
	var audit struct {
		Transactions []struct {
			Type     string `json:"transaction_type"`
			FromName string `json:"from_user_name"`
			ToName   string `json:"to_user_name"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(env.Data, &audit); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	if len(audit.Transactions) != 3 {
		t.Fatalf("expected mint+transfer+retire, got %d transactions", len(audit.Transactions))
	}
	// Newest first: retire, transfer, mint.
	if audit.Transactions[2].Type != "mint" || audit.Transactions[2].FromName != "System" {
		t.Fatalf("mint row wrong: %+v", audit.Transactions[2])
	}
	if audit.Transactions[1].Type != "transfer" || audit.Transactions[1].ToName != "steelworks" {
		t.Fatalf("transfer row wrong: %+v", audit.Transactions[1])
	}

	status, _ = call(t, srv, http.MethodGet, "/api/regulator/verify-chain", regulator, nil)
	if status != http.StatusOK {
		t.Fatalf("verify-chain: status %d", status)
	}

	status, env = call(t, srv, http.MethodPost, "/api/regulator/audit-export", regulator, nil)
	if status != http.StatusCreated {
		t.Fatalf("audit-export: status %d, error %+v", status, env.Error)
	}
	var exported struct {
		Key          string `json:"key"`
		ChainValid   bool   `json:"chain_valid"`
		Transactions int    `json:"transactions"`
	}
	if err := json.Unmarshal(env.Data, &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if !exported.ChainValid || exported.Transactions != 3 || exported.Key == "" {
		t.Fatalf("export wrong: %+v", exported)
	}
}

func TestRoleEnforcementOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	producer := login(t, srv, "plant", "producer")
	buyer := login(t, srv, "factory", "buyer")

	mintBody := map[string]interface{}{"batch_id": "B1", "units": 5, "production_date": "2024-03-04"}

	if status, _ := call(t, srv, http.MethodPost, "/api/producer/mint-credit", buyer, mintBody); status != http.StatusForbidden {
		t.Fatalf("buyer minting: status %d, want 403", status)
	}
	if status, _ := call(t, srv, http.MethodGet, "/api/buyer/available-credits", producer, nil); status != http.StatusForbidden {
		t.Fatalf("producer browsing: status %d, want 403", status)
	}
	if status, _ := call(t, srv, http.MethodGet, "/api/regulator/transactions", buyer, nil); status != http.StatusForbidden {
		t.Fatalf("buyer auditing: status %d, want 403", status)
	}
	if status, _ := call(t, srv, http.MethodGet, "/api/regulator/transactions", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous auditing: status %d, want 401", status)
	}
	if status, _ := call(t, srv, http.MethodPost, "/api/producer/mint-credit", "not-a-token", mintBody); status != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d, want 401", status)
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	producer := login(t, srv, "plant", "producer")
	buyer := login(t, srv, "factory", "buyer")

	status, env := call(t, srv, http.MethodPost, "/api/producer/mint-credit", producer, map[string]interface{}{
		"batch_id":        "B1",
		"units":           -5,
		"production_date": "2024-01-01",
	})
	if status != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Details["units"] == "" {
		t.Fatalf("negative units: status %d, error %+v", status, env.Error)
	}

	status, _ = call(t, srv, http.MethodPost, "/api/producer/mint-credit", producer, map[string]interface{}{
		"batch_id":        "B1",
		"units":           5,
		"production_date": "January 1st",
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("bad date: status %d, want 422", status)
	}

	status, _ = call(t, srv, http.MethodPost, "/api/buyer/purchase-credit", buyer, map[string]interface{}{
		"credit_id": "not-a-uuid",
		"units":     5,
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("bad credit id: status %d, want 422", status)
	}
}
