package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stagesfw/firmware/app"
)

func newTestApp(t *testing.T) *app.App {
	dir := t.TempDir()
	cfg := app.Config{
		BlockSize: 8,
		Modules: []app.ModuleConfig{
			{SettingsPath: filepath.Join(dir, "m0.bin"), Link: app.LinkConfig{Virtual: true}},
		},
	}
	a, err := app.New(cfg, nil)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return a
}

func TestHandleChainReturnsStatus(t *testing.T) {
	a := newTestApp(t)
	s := New(a.Modules)

	req := httptest.NewRequest(http.MethodGet, "/modules/0/chain", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body chainStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "discovering" {
		t.Fatalf("expected a fresh module to be discovering, got %q", body.Status)
	}
}

func TestHandleChainUnknownModuleReturns404(t *testing.T) {
	a := newTestApp(t)
	s := New(a.Modules)

	req := httptest.NewRequest(http.MethodGet, "/modules/9/chain", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleChannelsReturnsSixChannels(t *testing.T) {
	a := newTestApp(t)
	s := New(a.Modules)

	req := httptest.NewRequest(http.MethodGet, "/modules/0/channels", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body []channelView
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 6 {
		t.Fatalf("expected 6 channels, got %d", len(body))
	}
}
