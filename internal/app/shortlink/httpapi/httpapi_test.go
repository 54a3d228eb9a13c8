package httpapi

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

	"shortener.local/gee"
	"shortener.local/internal/app/shortlink"
	"shortener.local/internal/app/shortlink/repo"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testAPI struct {
	engine *gee.Engine
	clock  *testClock
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	store, err := repo.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(store.Close)

	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	reg := shortlink.NewRegistry(store,
		shortlink.WithClock(clock.Now),
		shortlink.WithReservedCodes(ReservedCodes...),
	)
	engine := gee.New()
	engine.Use(gee.Recovery())
	RegisterRoutes(engine, reg, opts)
	return &testAPI{engine: engine, clock: clock}
}

func (a *testAPI) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, target, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) create(t *testing.T, body string) map[string]any {
	t.Helper()
	w := a.do(http.MethodPost, "/urls", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	return decodeObject(t, w.Body.Bytes())
}

func decodeObject(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode %q: %v", b, err)
	}
	return m
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) gee.ErrorResponse {
	t.Helper()
	var e gee.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}

func TestCreateReturnsFullRecord(t *testing.T) {
	api := newTestAPI(t, Options{})

	w := api.do(http.MethodPost, "/urls", `{"originalUrl":"https://example.com/a"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	body := decodeObject(t, w.Body.Bytes())

	code, _ := body["shortCode"].(string)
	if !shortlink.IsShortCode(code) {
		t.Fatalf("shortCode: %v", body["shortCode"])
	}
	if got := w.Header().Get("Location"); got != "/urls/"+code {
		t.Fatalf("Location: got %q", got)
	}
	if body["originalUrl"] != "https://example.com/a" {
		t.Fatalf("originalUrl: %v", body["originalUrl"])
	}
	if token, _ := body["deleteToken"].(string); len(token) != 32 {
		t.Fatalf("deleteToken: %v", body["deleteToken"])
	}
	if body["clicks"] != float64(0) {
		t.Fatalf("clicks: %v", body["clicks"])
	}
	if _, ok := body["expiresAt"]; ok {
		t.Fatalf("permanent link must not carry expiresAt: %v", body["expiresAt"])
	}
	if body["shortUrl"] != "http://example.com/"+code {
		t.Fatalf("shortUrl: %v", body["shortUrl"])
	}
	if body["createdAt"] != "2025-03-01T12:00:00Z" {
		t.Fatalf("createdAt: %v", body["createdAt"])
	}
}

func TestCreateWithExpiry(t *testing.T) {
	api := newTestAPI(t, Options{})

	body := api.create(t, `{"originalUrl":"https://example.com","expireIn":60000}`)
	if body["expiresAt"] != "2025-03-01T12:01:00Z" {
		t.Fatalf("expiresAt: %v", body["expiresAt"])
	}
}

func TestCreateShortURLPrefix(t *testing.T) {
	t.Run("public base url", func(t *testing.T) {
		api := newTestAPI(t, Options{PublicBaseURL: "https://s.example.org/"})
		body := api.create(t, `{"originalUrl":"https://example.com"}`)
		if body["shortUrl"] != "https://s.example.org/"+body["shortCode"].(string) {
			t.Fatalf("shortUrl: %v", body["shortUrl"])
		}
	})
	t.Run("forwarded proto", func(t *testing.T) {
		api := newTestAPI(t, Options{})
		w := api.do(http.MethodPost, "/urls", `{"originalUrl":"https://example.com"}`,
			map[string]string{"X-Forwarded-Proto": "https"})
		body := decodeObject(t, w.Body.Bytes())
		if body["shortUrl"] != "https://example.com/"+body["shortCode"].(string) {
			t.Fatalf("shortUrl: %v", body["shortUrl"])
		}
	})
}

func TestCreateValidation(t *testing.T) {
	api := newTestAPI(t, Options{})

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"missing url", `{}`, msgInvalidURL},
		{"relative url", `{"originalUrl":"/just/a/path"}`, msgInvalidURL},
		{"ftp url", `{"originalUrl":"ftp://example.com"}`, msgInvalidURL},
		{"expiry too short", `{"originalUrl":"https://example.com","expireIn":999}`, msgInvalidExpiration},
		{"expiry too long", `{"originalUrl":"https://example.com","expireIn":63072000001}`, msgInvalidExpiration},
		{"negative expiry", `{"originalUrl":"https://example.com","expireIn":-5}`, msgInvalidExpiration},
		{"malformed json", `{"originalUrl":`, "Invalid json"},
		{"unknown field", `{"originalUrl":"https://example.com","code":"abc"}`, "Invalid json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/urls", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Message; got != tc.message {
				t.Fatalf("message: got %q, want %q", got, tc.message)
			}
		})
	}
}

func TestInvalidExpirationMessageNamesRange(t *testing.T) {
	if msgInvalidExpiration != "Invalid expiration. Must be between 1s and 2y." {
		t.Fatalf("message: %q", msgInvalidExpiration)
	}
}

func TestRedirectCountsClicks(t *testing.T) {
	api := newTestAPI(t, Options{})
	code := api.create(t, `{"originalUrl":"https://example.com/a?b=c"}`)["shortCode"].(string)

	for i := 0; i < 3; i++ {
		w := api.do(http.MethodGet, "/"+code, "", nil)
		if w.Code != http.StatusFound {
			t.Fatalf("redirect %d: status %d", i, w.Code)
		}
		if got := w.Header().Get("Location"); got != "https://example.com/a?b=c" {
			t.Fatalf("Location: got %q", got)
		}
	}

	info := decodeObject(t, api.do(http.MethodGet, "/urls/"+code+"/info", "", nil).Body.Bytes())
	if clicks := info["url"].(map[string]any)["clicks"]; clicks != float64(3) {
		t.Fatalf("clicks: got %v, want 3", clicks)
	}
}

func TestRedirectNotFound(t *testing.T) {
	api := newTestAPI(t, Options{})

	for _, path := range []string{"/Zzzzz9", "/not-a-code", "/health2"} {
		w := api.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: status %d", path, w.Code)
		}
		if got := decodeError(t, w).Message; got != msgNotFound {
			t.Fatalf("%s: message %q", path, got)
		}
	}
}

func TestRedirectExpired(t *testing.T) {
	api := newTestAPI(t, Options{})
	code := api.create(t, `{"originalUrl":"https://example.com","expireIn":1000}`)["shortCode"].(string)

	if w := api.do(http.MethodGet, "/"+code, "", nil); w.Code != http.StatusFound {
		t.Fatalf("before expiry: status %d", w.Code)
	}

	api.clock.Advance(time.Second)
	w := api.do(http.MethodGet, "/"+code, "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("after expiry: status %d", w.Code)
	}
	if got := decodeError(t, w).Message; got != msgExpired {
		t.Fatalf("message: %q", got)
	}

	info := decodeObject(t, api.do(http.MethodGet, "/urls/"+code+"/info", "", nil).Body.Bytes())
	if clicks := info["url"].(map[string]any)["clicks"]; clicks != float64(1) {
		t.Fatalf("expired redirect must not count, clicks=%v", clicks)
	}
}

func TestListHidesTokenAndExpired(t *testing.T) {
	api := newTestAPI(t, Options{})
	keep := api.create(t, `{"originalUrl":"https://example.com/keep"}`)
	api.clock.Advance(time.Millisecond)
	gone := api.create(t, `{"originalUrl":"https://example.com/gone","expireIn":1000}`)
	api.clock.Advance(2 * time.Second)

	w := api.do(http.MethodGet, "/urls", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	for _, token := range []any{keep["deleteToken"], gone["deleteToken"]} {
		if bytes.Contains(w.Body.Bytes(), []byte(token.(string))) {
			t.Fatalf("list leaked a delete token: %s", w.Body.String())
		}
	}
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0]["shortCode"] != keep["shortCode"] {
		t.Fatalf("active list: %v", list)
	}
	if _, ok := list[0]["deleteToken"]; ok {
		t.Fatal("deleteToken key present in list view")
	}

	w = api.do(http.MethodGet, "/urls?all=true", "", nil)
	list = nil
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0]["shortCode"] != gone["shortCode"] {
		t.Fatalf("full list should be newest first: %v", list)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	api := newTestAPI(t, Options{})
	w := api.do(http.MethodGet, "/urls", "", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("body: %q", w.Body.String())
	}
}

func TestDelete(t *testing.T) {
	api := newTestAPI(t, Options{})

	t.Run("header token", func(t *testing.T) {
		link := api.create(t, `{"originalUrl":"https://example.com"}`)
		code := link["shortCode"].(string)
		w := api.do(http.MethodDelete, "/urls/"+code, "", map[string]string{deleteTokenHeader: link["deleteToken"].(string)})
		if w.Code != http.StatusNoContent {
			t.Fatalf("status %d body %s", w.Code, w.Body.String())
		}
		if w := api.do(http.MethodGet, "/"+code, "", nil); w.Code != http.StatusNotFound {
			t.Fatalf("resolve after delete: status %d", w.Code)
		}
	})

	t.Run("body token", func(t *testing.T) {
		link := api.create(t, `{"originalUrl":"https://example.com"}`)
		body := `{"deleteToken":"` + link["deleteToken"].(string) + `"}`
		w := api.do(http.MethodDelete, "/urls/"+link["shortCode"].(string), body, nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("status %d body %s", w.Code, w.Body.String())
		}
	})

	t.Run("header wins over body", func(t *testing.T) {
		link := api.create(t, `{"originalUrl":"https://example.com"}`)
		body := `{"deleteToken":"` + link["deleteToken"].(string) + `"}`
		w := api.do(http.MethodDelete, "/urls/"+link["shortCode"].(string), body, map[string]string{deleteTokenHeader: "wrong"})
		if w.Code != http.StatusForbidden {
			t.Fatalf("status %d", w.Code)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		link := api.create(t, `{"originalUrl":"https://example.com"}`)
		w := api.do(http.MethodDelete, "/urls/"+link["shortCode"].(string), "", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status %d", w.Code)
		}
		if got := decodeError(t, w).Message; got != msgMissingToken {
			t.Fatalf("message %q", got)
		}
	})

	t.Run("wrong token keeps record", func(t *testing.T) {
		link := api.create(t, `{"originalUrl":"https://example.com"}`)
		code := link["shortCode"].(string)
		w := api.do(http.MethodDelete, "/urls/"+code, "", map[string]string{deleteTokenHeader: "not-the-token"})
		if w.Code != http.StatusForbidden {
			t.Fatalf("status %d", w.Code)
		}
		if w := api.do(http.MethodGet, "/"+code, "", nil); w.Code != http.StatusFound {
			t.Fatalf("record should survive, resolve status %d", w.Code)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		w := api.do(http.MethodDelete, "/urls/Zzzzz9", "", map[string]string{deleteTokenHeader: "x"})
		if w.Code != http.StatusNotFound {
			t.Fatalf("status %d", w.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		link := api.create(t, `{"originalUrl":"https://example.com"}`)
		w := api.do(http.MethodDelete, "/urls/"+link["shortCode"].(string), `{"deleteToken":`, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status %d", w.Code)
		}
	})
}

func TestInfo(t *testing.T) {
	api := newTestAPI(t, Options{})
	link := api.create(t, `{"originalUrl":"https://example.com","expireIn":90061000}`)
	code := link["shortCode"].(string)

	w := api.do(http.MethodGet, "/urls/"+code+"/info", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte(link["deleteToken"].(string))) {
		t.Fatal("info leaked the delete token")
	}
	body := decodeObject(t, w.Body.Bytes())
	status := body["status"].(map[string]any)
	if status["isExpired"] != false || status["timeUntilExpiration"] != "1d 1h 1m 1s" {
		t.Fatalf("status: %v", status)
	}

	api.clock.Advance(26 * time.Hour)
	body = decodeObject(t, api.do(http.MethodGet, "/urls/"+code+"/info", "", nil).Body.Bytes())
	status = body["status"].(map[string]any)
	if status["isExpired"] != true {
		t.Fatalf("isExpired: %v", status["isExpired"])
	}
	if v, ok := status["timeUntilExpiration"]; !ok || v != nil {
		t.Fatalf("timeUntilExpiration should be null, got %v (present=%v)", v, ok)
	}

	if w := api.do(http.MethodGet, "/urls/Zzzzz9/info", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown info: status %d", w.Code)
	}
}

func TestInfoPermanentLink(t *testing.T) {
	api := newTestAPI(t, Options{})
	code := api.create(t, `{"originalUrl":"https://example.com"}`)["shortCode"].(string)

	body := decodeObject(t, api.do(http.MethodGet, "/urls/"+code+"/info", "", nil).Body.Bytes())
	status := body["status"].(map[string]any)
	if status["isExpired"] != false || status["timeUntilExpiration"] != nil {
		t.Fatalf("status: %v", status)
	}
}

func TestStats(t *testing.T) {
	api := newTestAPI(t, Options{})
	a := api.create(t, `{"originalUrl":"https://example.com/a"}`)["shortCode"].(string)
	api.create(t, `{"originalUrl":"https://example.com/b","expireIn":1000}`)
	api.do(http.MethodGet, "/"+a, "", nil)
	api.do(http.MethodGet, "/"+a, "", nil)
	api.clock.Advance(time.Second)

	w := api.do(http.MethodGet, "/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := decodeObject(t, w.Body.Bytes())
	want := map[string]any{
		"totalUrls":   float64(2),
		"activeUrls":  float64(1),
		"expiredUrls": float64(1),
		"totalClicks": float64(2),
		"timestamp":   "2025-03-01T12:00:01Z",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s: got %v, want %v", k, body[k], v)
		}
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, Options{})

	w := api.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := decodeObject(t, w.Body.Bytes())
	if body["status"] != "healthy" {
		t.Fatalf("status: %v", body["status"])
	}
	if _, err := time.Parse(time.RFC3339Nano, body["timestamp"].(string)); err != nil {
		t.Fatalf("timestamp: %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{shortlink.ErrInvalidURL, http.StatusBadRequest},
		{shortlink.ErrInvalidExpiration, http.StatusBadRequest},
		{shortlink.ErrMissingToken, http.StatusBadRequest},
		{shortlink.ErrExpired, http.StatusBadRequest},
		{shortlink.ErrForbidden, http.StatusForbidden},
		{shortlink.ErrNotFound, http.StatusNotFound},
		{shortlink.ErrStorage, http.StatusInternalServerError},
		{shortlink.ErrCodeSpaceExhausted, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, msg := statusFor(tc.err)
		if code != tc.code {
			t.Errorf("%v: got %d, want %d", tc.err, code, tc.code)
		}
		if code == http.StatusInternalServerError && msg != msgInternalError {
			t.Errorf("%v: internal detail leaked in %q", tc.err, msg)
		}
	}
}
