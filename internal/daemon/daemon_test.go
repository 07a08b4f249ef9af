package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bookforge/internal/api"
	"bookforge/internal/config"
	"bookforge/internal/export"
	"bookforge/internal/images"
	"bookforge/internal/logging"
	"bookforge/internal/services/placeholder"
	"bookforge/internal/store"
	"bookforge/internal/testsupport"
	"bookforge/internal/workflow"
)

type harness struct {
	cfg     *config.Config
	store   *store.Store
	manager *workflow.Manager
	daemon  *Daemon
	server  *httptest.Server
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	text := &testsupport.FakeText{}
	ai := &testsupport.FakeImages{Data: testsupport.PNG("ai")}
	resolver := images.NewResolver(ai, nil, placeholder.New())
	mgr := workflow.NewManager(cfg, st, text, resolver, logging.NewNop())
	exporter := export.NewEngine(cfg, st, logging.NewNop())

	d, err := New(cfg, st, logging.NewNop(), mgr, exporter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(d.api.router)
	t.Cleanup(func() {
		srv.Close()
		d.Stop()
	})
	return &harness{cfg: cfg, store: st, manager: mgr, daemon: d, server: srv}
}

func (h *harness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h.daemon.Address() == "" {
		t.Fatal("expected api listener address")
	}
	status := h.daemon.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon and lane to report running: %+v", status)
	}
	if len(status.Providers) != 4 {
		t.Fatalf("expected provider statuses, got %d", len(status.Providers))
	}

	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, err := New(h.cfg, h.store, logging.NewNop(), h.manager, export.NewEngine(h.cfg, h.store, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := other.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention, got %v", err)
	}

	h.daemon.Stop()
	if h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if h.daemon.Address() != "" {
		t.Fatal("expected listener to be released")
	}
}

func TestAPIRootAndStatus(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodGet, "/api/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("root status = %d", resp.StatusCode)
	}
	if msg := decode[api.MessageResponse](t, resp); msg.Version != api.Version {
		t.Fatalf("unexpected root payload: %+v", msg)
	}

	resp = h.do(t, http.MethodGet, "/api/status", nil)
	status := decode[api.DaemonStatus](t, resp)
	if status.Running || status.LockFilePath != h.cfg.LockPath() || status.Workflow.Queued == nil {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.API.Token = "secret" })

	resp := h.do(t, http.MethodGet, "/api/books", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/api/books", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	wrong, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	wrong.Body.Close()
	if wrong.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d", wrong.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer secret")
	ok, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	ok.Body.Close()
	if ok.StatusCode != http.StatusOK {
		t.Fatalf("status with token = %d", ok.StatusCode)
	}

	metricsResp := h.do(t, http.MethodGet, "/metrics", nil)
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("metrics should not require a token, got %d", metricsResp.StatusCode)
	}
}

func TestAPICreateListAndDeleteBook(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodPost, "/api/books", api.CreateBookRequest{
		Title:       "Roots and Branches",
		Language:    "en",
		TargetPages: 40,
		ImageSource: "stock",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	book := decode[store.Book](t, resp)
	if book.ID == "" || book.Status != store.StatusOutlinePending || book.ImagePolicy != store.ImagePolicyStock {
		t.Fatalf("unexpected book: %+v", book)
	}

	list := decode[api.BookListResponse](t, h.do(t, http.MethodGet, "/api/books", nil))
	if len(list.Books) != 1 || list.Books[0].ID != book.ID {
		t.Fatalf("unexpected listing: %+v", list)
	}

	resp = h.do(t, http.MethodPut, "/api/books/"+book.ID+"/outline", api.OutlineRequest{Outline: testsupport.SampleOutline(2)})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("editing a pending outline should be rejected, got %d", resp.StatusCode)
	}
	if failure := decode[api.ErrorResponse](t, resp); failure.Kind != "validation" {
		t.Fatalf("unexpected error body: %+v", failure)
	}

	resp = h.do(t, http.MethodDelete, "/api/books/"+book.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = h.do(t, http.MethodGet, "/api/books/"+book.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", resp.StatusCode)
	}
	if failure := decode[api.ErrorResponse](t, resp); failure.Kind != "not_found" {
		t.Fatalf("unexpected error body: %+v", failure)
	}
}

func TestAPIRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, nil)
	book := testsupport.NewBookWithOutline(t, h.store, 2, false)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed create", http.MethodPost, "/api/books", "not an object", http.StatusBadRequest},
		{"blank title", http.MethodPost, "/api/books", api.CreateBookRequest{Title: "  "}, http.StatusBadRequest},
		{"chapter not a number", http.MethodPost, "/api/books/" + book.ID + "/generate-chapter/one", nil, http.StatusBadRequest},
		{"chapter zero", http.MethodPost, "/api/books/" + book.ID + "/generate-chapter/0", nil, http.StatusBadRequest},
		{"chapter outside outline", http.MethodPost, "/api/books/" + book.ID + "/generate-chapter/9", nil, http.StatusNotFound},
		{"bad list limit", http.MethodGet, "/api/books?limit=-1", nil, http.StatusBadRequest},
		{"export without chapters", http.MethodPost, "/api/books/" + book.ID + "/export", api.ExportRequest{Format: "pdf"}, http.StatusBadRequest},
		{"missing image", http.MethodGet, "/api/books/" + book.ID + "/chapters/1/image", nil, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.do(t, tc.method, tc.path, tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestAPIGenerateImageAndExport(t *testing.T) {
	h := newHarness(t, nil)
	book := testsupport.NewBookWithOutline(t, h.store, 2, false)
	base := "/api/books/" + book.ID

	resp := h.do(t, http.MethodPost, base+"/generate-chapter/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate chapter status = %d", resp.StatusCode)
	}
	updated := decode[store.Book](t, resp)
	if len(updated.Chapters) != 1 || updated.Chapters[0].Number != 1 {
		t.Fatalf("unexpected chapters: %+v", updated.Chapters)
	}

	resp = h.do(t, http.MethodPost, base+"/generate-image/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate image status = %d", resp.StatusCode)
	}
	img := decode[api.ImageResponse](t, resp)
	if img.ImageURL != store.ImageURL(book.ID, 1) {
		t.Fatalf("image url = %q", img.ImageURL)
	}

	resp = h.do(t, http.MethodGet, img.ImageURL, nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("image fetch status = %d type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp = h.do(t, http.MethodPost, base+"/export", api.ExportRequest{Format: "epub"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/epub+zip" {
		t.Fatalf("content type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(got, "attachment; filename=") || !strings.HasSuffix(got, `.epub"`) {
		t.Fatalf("content disposition = %q", got)
	}
	if resp.Header.Get("X-Export-Cached") != "false" {
		t.Fatal("first export should not be cached")
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("expected a zip container")
	}

	again := h.do(t, http.MethodGet, base+"/export/epub", nil)
	if again.StatusCode != http.StatusOK || again.Header.Get("X-Export-Cached") != "true" {
		t.Fatalf("second export status = %d cached = %q", again.StatusCode, again.Header.Get("X-Export-Cached"))
	}

	unknown := h.do(t, http.MethodGet, base+"/export/odt", nil)
	if unknown.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown format status = %d", unknown.StatusCode)
	}

	resp = h.do(t, http.MethodDelete, base+"/chapters/1/image", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete image status = %d", resp.StatusCode)
	}
	resp = h.do(t, http.MethodGet, img.ImageURL, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("image after delete status = %d", resp.StatusCode)
	}
}

func TestAPIEventsStream(t *testing.T) {
	h := newHarness(t, nil)
	book := testsupport.NewBookWithOutline(t, h.store, 2, false)

	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/api/books/" + book.ID + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot workflow.Event
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Type != workflow.EventStatus || snapshot.BookID != book.ID || snapshot.Total != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	if _, err := h.manager.GenerateChapter(context.Background(), book.ID, 1); err != nil {
		t.Fatalf("GenerateChapter: %v", err)
	}
	var evt workflow.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Type != workflow.EventChapter || evt.Chapter != 1 || evt.Generated != 1 {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestAPIEventsUnknownBook(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, http.MethodGet, "/api/books/missing/events", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.API.CORSOrigins = []string{"https://books.example"}
	})

	req, _ := http.NewRequest(http.MethodOptions, h.server.URL+"/api/books", nil)
	req.Header.Set("Origin", "https://books.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://books.example" {
		t.Fatalf("allow origin = %q", got)
	}

	req.Header.Set("Origin", "https://elsewhere.example")
	other, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	other.Body.Close()
	if other.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected allow origin for foreign site")
	}
}
