package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "service-role-key"

// fakePostgrest serves the subset of the PostgREST protocol the claim
// repository speaks: eq/like/is filters, order, limit, select and
// return=representation on writes.
type fakePostgrest struct {
	mu       sync.Mutex
	rows     []map[string]interface{}
	requests []*http.Request
}

func newFakePostgrest(t *testing.T) (*fakePostgrest, *httptest.Server) {
	fake := &fakePostgrest{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakePostgrest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)

	if r.URL.Path != "/rest/v1/claims" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Header.Get("apikey") != testAPIKey || r.Header.Get("Authorization") != "Bearer "+testAPIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid key"})
		return
	}

	query := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		rows := f.filter(query)
		sortRows(rows, query.Get("order"))
		if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit < len(rows) {
			rows = rows[:limit]
		}
		writeJSON(w, http.StatusOK, project(rows, query.Get("select")))

	case http.MethodPost:
		var row map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		for _, existing := range f.rows {
			if existing["tcar_no"] == row["tcar_no"] {
				writeJSON(w, http.StatusConflict, map[string]string{
					"code":    "23505",
					"message": `duplicate key value violates unique constraint "claims_tcar_no_key"`,
				})
				return
			}
		}
		f.rows = append(f.rows, row)
		writeJSON(w, http.StatusCreated, []map[string]interface{}{row})

	case http.MethodPatch:
		var cols map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&cols); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		rows := f.filter(query)
		for _, row := range rows {
			for k, v := range cols {
				row[k] = v
			}
		}
		writeJSON(w, http.StatusOK, project(rows, query.Get("select")))

	case http.MethodDelete:
		matched := f.filter(query)
		kept := f.rows[:0]
		for _, row := range f.rows {
			if !containsRow(matched, row) {
				kept = append(kept, row)
			}
		}
		f.rows = kept
		writeJSON(w, http.StatusOK, project(matched, query.Get("select")))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePostgrest) filter(query map[string][]string) []map[string]interface{} {
	out := []map[string]interface{}{}
	for _, row := range f.rows {
		if matches(row, query) {
			out = append(out, row)
		}
	}
	return out
}

func matches(row map[string]interface{}, query map[string][]string) bool {
	for column, values := range query {
		switch column {
		case "select", "order", "limit":
			continue
		}
		op, arg, _ := strings.Cut(values[0], ".")
		value := fmt.Sprint(row[column])
		switch op {
		case "is":
			if arg != "null" || row[column] != nil {
				return false
			}
		case "eq":
			if value != arg {
				return false
			}
		case "like":
			pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(arg), `\*`, ".*") + "$"
			if !regexp.MustCompile(pattern).MatchString(value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sortRows(rows []map[string]interface{}, order string) {
	if order == "" {
		return
	}
	terms := strings.Split(order, ",")
	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range terms {
			column, dir, _ := strings.Cut(term, ".")
			c := compareValues(fmt.Sprint(rows[i][column]), fmt.Sprint(rows[j][column]))
			if c == 0 {
				continue
			}
			if dir == "desc" {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

func project(rows []map[string]interface{}, sel string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if sel == "" || sel == "*" {
			out = append(out, row)
			continue
		}
		picked := map[string]interface{}{}
		for _, column := range strings.Split(sel, ",") {
			picked[column] = row[column]
		}
		out = append(out, picked)
	}
	return out
}

func containsRow(rows []map[string]interface{}, row map[string]interface{}) bool {
	for _, r := range rows {
		if r["id"] == row["id"] {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestPostgrestClaimRepository(t *testing.T) {
	testClaimRepository(t, func(t *testing.T) repository.ClaimRepository {
		_, server := newFakePostgrest(t)
		return NewPostgrestClaimRepository(server.URL+"/", testAPIKey, 5*time.Second)
	})
}

func TestPostgrestClaimRepositoryWireFormat(t *testing.T) {
	ctx := context.Background()
	fake, server := newFakePostgrest(t)
	repo := NewPostgrestClaimRepository(server.URL, testAPIKey, 5*time.Second)

	created, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
	require.NoError(t, err)

	fake.mu.Lock()
	row := fake.rows[0]
	post := fake.requests[0]
	fake.mu.Unlock()

	assert.Equal(t, "return=representation", post.Header.Get("Prefer"))
	assert.Equal(t, "202610-0001", row["tcar_no"])
	assert.Equal(t, "ACME", row["customer_name"])
	assert.Equal(t, "PENDING_ACCEPTANCE", row["status"])
	assert.Equal(t, created.ID, row["id"])
	assert.Contains(t, row, "dc_items")
	assert.NotContains(t, row, "customerName")
	assert.Nil(t, row["remarks"])

	_, err = repo.Update(ctx, created.ID, entity.ClaimPatch{Remarks: strPtr("checked")})
	require.NoError(t, err)

	fake.mu.Lock()
	patch := fake.requests[len(fake.requests)-1]
	fake.mu.Unlock()
	assert.Equal(t, http.MethodPatch, patch.Method)
	assert.Equal(t, "eq."+created.ID, patch.URL.Query().Get("id"))
}

func TestPostgrestClaimRepositorySoftDelete(t *testing.T) {
	ctx := context.Background()
	fake, server := newFakePostgrest(t)
	repo := NewPostgrestClaimRepository(server.URL, testAPIKey, 5*time.Second)

	created, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	fake.mu.Lock()
	require.Len(t, fake.rows, 1)
	row := fake.rows[0]
	del := fake.requests[len(fake.requests)-1]
	fake.mu.Unlock()

	assert.Equal(t, http.MethodPatch, del.Method)
	assert.Equal(t, "is.null", del.URL.Query().Get("deleted_at"))
	assert.NotNil(t, row["deleted_at"])

	_, err = repo.GetByTcarNo(ctx, "202610-0001")
	assert.True(t, apperror.IsNotFound(err))

	_, err = repo.Update(ctx, created.ID, entity.ClaimPatch{Remarks: strPtr("late")})
	assert.True(t, apperror.IsNotFound(err))
}

func TestPostgrestClaimRepositoryConditionalUpdateFilter(t *testing.T) {
	ctx := context.Background()
	fake, server := newFakePostgrest(t)
	repo := NewPostgrestClaimRepository(server.URL, testAPIKey, 5*time.Second)

	created, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
	require.NoError(t, err)

	status := entity.StatusPendingCountermeasure
	_, err = repo.UpdateIfStatus(ctx, created.ID, entity.StatusPendingAcceptance, entity.ClaimPatch{Status: &status})
	require.NoError(t, err)

	fake.mu.Lock()
	patch := fake.requests[len(fake.requests)-1]
	fake.mu.Unlock()
	assert.Equal(t, http.MethodPatch, patch.Method)
	assert.Equal(t, "eq.PENDING_ACCEPTANCE", patch.URL.Query().Get("status"))
}

func TestPostgrestClaimRepositoryErrorMapping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unique violation code",
			status: http.StatusBadRequest,
			body:   `{"code":"23505","message":"duplicate key"}`,
			check: func(t *testing.T, err error) {
				assert.True(t, apperror.IsConflict(err))
			},
		},
		{
			name:   "conflict status",
			status: http.StatusConflict,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				assert.True(t, apperror.IsConflict(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"message":"boom"}`,
			check: func(t *testing.T, err error) {
				assert.Equal(t, apperror.CodeInternal, apperror.CodeOf(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			repo := NewPostgrestClaimRepository(server.URL, testAPIKey, time.Second)
			_, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRestTimeAcceptsPostgresRenderings(t *testing.T) {
	for _, raw := range []string{
		`"2026-10-18T09:30:00.123456+00:00"`,
		`"2026-10-18T09:30:00.123456"`,
		`"2026-10-18 09:30:00.123456+00"`,
	} {
		var ts restTime
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), raw)
		assert.Equal(t, 2026, ts.Year())
		assert.Equal(t, 9, ts.Hour())
	}

	var ts restTime
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
