package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeIdempotencyStore struct {
	mu       sync.Mutex
	values   map[string][]byte
	err      error
	released []string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{values: map[string][]byte{}}
}

func (f *fakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, nil, f.err
	}
	if v, ok := f.values[key]; ok {
		return true, v, nil
	}
	if response == nil {
		response = []byte(processingMarker)
	}
	f.values[key] = response
	return false, nil, nil
}

func (f *fakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = response
	return nil
}

func (f *fakeIdempotencyStore) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	f.released = append(f.released, key)
	return nil
}

func newIdempotentRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rounds/r1/purchases", bytes.NewBufferString(`{"count":1}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req
}

func TestIdempotencyMiddleware_StoreErrorsFailClosed(t *testing.T) {
	store := newFakeIdempotencyStore()
	store.err = context.DeadlineExceeded
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	var called bool
	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, newIdempotentRequest("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReplaysFirstSuccess(t *testing.T) {
	store := newFakeIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	calls := 0
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]int{"call": calls})
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newIdempotentRequest("key-1"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newIdempotentRequest("key-1"))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", second.Code)
	}
	if second.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected replay header")
	}
	if strings.TrimSpace(second.Body.String()) != strings.TrimSpace(first.Body.String()) {
		t.Fatalf("expected identical body, got %q vs %q", second.Body.String(), first.Body.String())
	}
}

func TestIdempotencyMiddleware_ReleasesFailedResponses(t *testing.T) {
	store := newFakeIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	status := http.StatusConflict
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newIdempotentRequest("key-fail"))
	if len(store.released) != 1 {
		t.Fatalf("expected failed request to release its key, got %v", store.released)
	}

	status = http.StatusCreated
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, newIdempotentRequest("key-fail"))
	if rr.Code != http.StatusCreated || rr.Header().Get(IdempotencyReplayHeader) != "" {
		t.Fatalf("expected retry to run the handler, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_InFlightConflict(t *testing.T) {
	store := newFakeIdempotencyStore()
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	req := newIdempotentRequest("key-busy")
	store.values[scopedKey(req, "key-busy")] = []byte(processingMarker)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run while the key is in flight")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_SkipsNonMutatingRequests(t *testing.T) {
	mw := NewIdempotencyMiddleware(newFakeIdempotencyStore(), time.Minute, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rounds", nil)
	req.Header.Set(IdempotencyKeyHeader, "ignored")
	rr := httptest.NewRecorder()

	called := false
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, req)

	if !called {
		t.Fatalf("expected next handler to be called")
	}
}

func TestIdempotencyMiddleware_KeysAreScopedByPath(t *testing.T) {
	a := newIdempotentRequest("same")
	b := httptest.NewRequest(http.MethodPost, "/api/v1/rounds/r2/purchases", nil)

	if scopedKey(a, "same") == scopedKey(b, "same") {
		t.Fatal("expected different routes to scope the same key apart")
	}
}
