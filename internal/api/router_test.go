package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reflights/internal/api"
	"reflights/internal/api/middleware"
	"reflights/internal/channel"
	"reflights/internal/domain/payment"
	"reflights/internal/infrastructure/memory"
	"reflights/internal/oracle"
	"reflights/internal/usecase"
)

var secret = []byte("test-secret")

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	uc := usecase.New(usecase.Dependencies{
		Tx:          store,
		Tickets:     store.Tickets,
		Listings:    store.Listings,
		Allowlist:   store.Allowlist,
		Ledger:      store.Ledger,
		Outbox:      store.Outbox,
		Inbox:       store.Inbox,
		Relocations: store.Relocations,
		Oracle:      oracle.NewAdapter(oracle.StaticFeed{Value: 1500, Decimals: 2}, 2, time.Minute),
		Channel: channel.NewOutboxChannel(store.Outbox, channel.Config{
			SourceDomain: "domain-a",
			Sender:       "bridge-domain-a",
			TopicPrefix:  "relocations-",
			BaseFee:      500,
			FeePerByte:   1,
		}),
		Logger: logger,
	}, usecase.Settings{DomainID: "domain-a", Admin: "admin", EventsTopic: "events"})

	srv := httptest.NewServer(api.NewRouter(api.NewHandlers(uc, logger), api.RouterConfig{
		JWTSecret: secret,
		Logger:    logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, identity string) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, identity, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

type response struct {
	status int
	body   map[string]any
}

func call(t *testing.T, srv *httptest.Server, method, path, identity, body string) response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if identity != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, identity))
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := response{status: resp.StatusCode}
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return out
}

func mintBody(paid int) string {
	dep := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	b, _ := json.Marshal(map[string]any{
		"flight_number":  "RF7",
		"departure":      "LIS",
		"destination":    "MAD",
		"departure_time": dep,
		"arrival_time":   dep.Add(90 * time.Minute),
		"seat_class":     "economy",
		"paid":           paid,
	})
	return string(b)
}

func TestMintAndRead(t *testing.T) {
	srv := newServer(t)

	res := call(t, srv, http.MethodPost, "/tickets", "alice", mintBody(2000))
	if res.status != http.StatusCreated {
		t.Fatalf("mint: %d %v", res.status, res.body)
	}
	if res.body["price"] != float64(1500) || res.body["refund"] != float64(500) {
		t.Fatalf("mint result: %v", res.body)
	}

	res = call(t, srv, http.MethodGet, "/tickets/0", "", "")
	if res.status != http.StatusOK || res.body["owner"] != "alice" {
		t.Fatalf("get: %d %v", res.status, res.body)
	}

	res = call(t, srv, http.MethodGet, "/balances/"+payment.TreasuryAccount, "", "")
	if res.status != http.StatusOK || res.body["balance"] != float64(1500) {
		t.Fatalf("treasury: %d %v", res.status, res.body)
	}
}

func TestListAndBuy(t *testing.T) {
	srv := newServer(t)
	call(t, srv, http.MethodPost, "/tickets", "alice", mintBody(1500))

	if res := call(t, srv, http.MethodPost, "/tickets/0/listing", "alice", `{"price":4000}`); res.status != http.StatusCreated {
		t.Fatalf("list: %d %v", res.status, res.body)
	}
	res := call(t, srv, http.MethodGet, "/listings", "", "")
	if ids, _ := res.body["ticket_ids"].([]any); len(ids) != 1 || ids[0] != float64(0) {
		t.Fatalf("active listings: %v", res.body)
	}

	if res := call(t, srv, http.MethodPost, "/tickets/0/buy", "bob", `{"paid":3999}`); res.status != http.StatusPaymentRequired || res.body["kind"] == "" {
		t.Fatalf("underpaid buy: %d %v", res.status, res.body)
	}
	if res := call(t, srv, http.MethodPost, "/tickets/0/buy", "bob", `{"paid":4000}`); res.status != http.StatusOK {
		t.Fatalf("buy: %d %v", res.status, res.body)
	}
	if res := call(t, srv, http.MethodGet, "/tickets/0", "", ""); res.body["owner"] != "bob" {
		t.Fatalf("owner after buy: %v", res.body)
	}
	if res := call(t, srv, http.MethodDelete, "/tickets/0/listing", "bob", ""); res.status != http.StatusNotFound {
		t.Fatalf("cancel sold listing: %d %v", res.status, res.body)
	}
}

func TestErrors(t *testing.T) {
	srv := newServer(t)
	call(t, srv, http.MethodPost, "/tickets", "alice", mintBody(1500))

	tests := []struct {
		name     string
		method   string
		path     string
		identity string
		body     string
		want     int
	}{
		{"unauthenticated write", http.MethodPost, "/tickets", "", mintBody(1500), http.StatusUnauthorized},
		{"unknown ticket", http.MethodGet, "/tickets/42", "", "", http.StatusNotFound},
		{"bad ticket id", http.MethodGet, "/tickets/abc", "", "", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/tickets/0/transfer", "alice", `{"to":"bob","extra":1}`, http.StatusBadRequest},
		{"not the owner", http.MethodPost, "/tickets/0/transfer", "mallory", `{"to":"mallory"}`, http.StatusForbidden},
		{"underpaid mint", http.MethodPost, "/tickets", "alice", mintBody(10), http.StatusPaymentRequired},
		{"non-admin", http.MethodPut, "/admin/domains/domain-b", "alice", `{"allowed":true}`, http.StatusForbidden},
		{"destination not allowlisted", http.MethodPost, "/tickets/0/relocate", "alice", `{"destination":"domain-b","recipient":"bob","funds":10000}`, http.StatusForbidden},
		{"too early to use", http.MethodPost, "/tickets/0/use", "alice", "", http.StatusConflict},
		{"unknown relocation", http.MethodGet, "/relocations/nope", "", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, srv, tt.method, tt.path, tt.identity, tt.body)
			if res.status != tt.want {
				t.Fatalf("got %d %v, want %d", res.status, res.body, tt.want)
			}
		})
	}
}

func TestAdminRelocation(t *testing.T) {
	srv := newServer(t)
	call(t, srv, http.MethodPost, "/tickets", "alice", mintBody(1500))

	if res := call(t, srv, http.MethodPut, "/admin/domains/domain-b", "admin", `{"allowed":true}`); res.status != http.StatusOK {
		t.Fatalf("allowlist: %d %v", res.status, res.body)
	}

	quote := call(t, srv, http.MethodGet, "/tickets/0/relocation-quote?destination=domain-b&recipient=bob", "", "")
	fee, _ := quote.body["fee"].(float64)
	if quote.status != http.StatusOK || fee <= 500 {
		t.Fatalf("quote: %d %v", quote.status, quote.body)
	}

	body, _ := json.Marshal(map[string]any{"destination": "domain-b", "recipient": "bob", "funds": fee})
	res := call(t, srv, http.MethodPost, "/tickets/0/relocate", "alice", string(body))
	if res.status != http.StatusAccepted {
		t.Fatalf("relocate: %d %v", res.status, res.body)
	}
	id, _ := res.body["message_id"].(string)
	if id == "" {
		t.Fatalf("relocation result: %v", res.body)
	}

	if res := call(t, srv, http.MethodGet, "/relocations/"+id, "", ""); res.status != http.StatusOK || res.body["recipient"] != "bob" {
		t.Fatalf("relocation record: %d %v", res.status, res.body)
	}
	if res := call(t, srv, http.MethodGet, "/tickets/0", "", ""); res.status != http.StatusNotFound {
		t.Fatalf("ticket still on source: %d %v", res.status, res.body)
	}
}
