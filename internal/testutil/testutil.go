package testutil

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetadmin/internal/db"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies
// migrations. The shared-cache DSN lets multiple connections see the same
// database. Closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// FakeMirror is an in-memory stand-in for the remote managed backend. It
// speaks the per-table REST surface the mirror client expects (upsert,
// select, delete) plus the identity-admin delete endpoint, and records
// everything for assertions.
type FakeMirror struct {
	mu sync.Mutex
	// tables maps table name -> row id -> raw row.
	tables map[string]map[string]json.RawMessage
	// FailIDs makes any upsert containing one of these row ids answer 500.
	FailIDs map[string]bool
	// Delay is applied before handling every request, to simulate a slow
	// or stuck mirror.
	Delay time.Duration
	// upserts counts upsert requests per table.
	upserts map[string]int
	// authHeader is the Authorization header of the most recent request.
	authHeader string
	// deletedAuth records ids removed via the identity-admin endpoint.
	deletedAuth []string

	Server *httptest.Server
}

func NewFakeMirror(t *testing.T) *FakeMirror {
	t.Helper()
	m := &FakeMirror{
		tables:  map[string]map[string]json.RawMessage{},
		FailIDs: map[string]bool{},
		upserts: map[string]int{},
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Server.Close)
	return m
}

func (m *FakeMirror) URL() string { return m.Server.URL }

func (m *FakeMirror) handle(w http.ResponseWriter, r *http.Request) {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	m.mu.Lock()
	m.authHeader = r.Header.Get("Authorization")
	m.mu.Unlock()
	switch {
	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		m.handleRest(w, r)
	case strings.HasPrefix(r.URL.Path, "/auth/v1/admin/users/"):
		m.handleAuth(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *FakeMirror) handleRest(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[table] == nil {
		m.tables[table] = map[string]json.RawMessage{}
	}

	switch r.Method {
	case http.MethodPost:
		var rows []map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.upserts[table]++
		for _, row := range rows {
			var id string
			if err := json.Unmarshal(row["id"], &id); err != nil || id == "" {
				http.Error(w, "row missing id", http.StatusBadRequest)
				return
			}
			if m.FailIDs[id] {
				http.Error(w, "simulated failure", http.StatusInternalServerError)
				return
			}
			raw, _ := json.Marshal(row)
			m.tables[table][id] = raw
		}
		w.WriteHeader(http.StatusCreated)

	case http.MethodGet:
		out := make([]json.RawMessage, 0, len(m.tables[table]))
		for _, row := range m.tables[table] {
			out = append(out, row)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)

	case http.MethodDelete:
		q := r.URL.Query().Get("id")
		id := strings.TrimPrefix(q, "eq.")
		delete(m.tables[table], id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m *FakeMirror) handleAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/auth/v1/admin/users/")
	m.mu.Lock()
	m.deletedAuth = append(m.deletedAuth, id)
	m.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// Seed stores rows in a table without going through HTTP. Each row must
// marshal to an object with a string "id" field.
func (m *FakeMirror) Seed(t *testing.T, table string, rows ...any) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[table] == nil {
		m.tables[table] = map[string]json.RawMessage{}
	}
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			t.Fatalf("seed %s: %v", table, err)
		}
		var probe struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil || probe.ID == "" {
			t.Fatalf("seed %s: row has no id", table)
		}
		m.tables[table][probe.ID] = raw
	}
}

// RowCount reports the number of rows currently held for a table.
func (m *FakeMirror) RowCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// RowIDs returns the ids currently stored in a table.
func (m *FakeMirror) RowIDs(table string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.tables[table]))
	for id := range m.tables[table] {
		ids = append(ids, id)
	}
	return ids
}

// Row returns the raw stored row for an id, or nil.
func (m *FakeMirror) Row(table, id string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[table][id]
}

// LastAuthorization returns the Authorization header of the most recent
// request.
func (m *FakeMirror) LastAuthorization() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authHeader
}

// UpsertCalls reports how many upsert requests a table has received.
func (m *FakeMirror) UpsertCalls(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts[table]
}

// DeletedAuthIDs returns the identity ids removed through the admin
// endpoint, in order.
func (m *FakeMirror) DeletedAuthIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletedAuth...)
}
