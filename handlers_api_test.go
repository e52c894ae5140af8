package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/teleturbo/teleturbo/accounts"
	"github.com/teleturbo/teleturbo/configs"
	"github.com/teleturbo/teleturbo/icon"
)

// setupTestApp creates a test application instance.
func setupTestApp(t *testing.T) (*AppServer, *httptest.Server) {
	tempDir := t.TempDir()
	storePath := filepath.Join(tempDir, "accounts.json")
	sessionBase := filepath.Join(tempDir, "sessions")

	accountManager, err := accounts.NewManager(storePath, sessionBase)
	if err != nil {
		t.Fatalf("failed to create account manager: %v", err)
	}

	teleturboService := NewTeleTurboService(accountManager)
	appServer := NewAppServer(teleturboService, accountManager)

	gin.SetMode(gin.TestMode)
	router := setupRoutes(appServer)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	// No credentials: client startup must fail loudly, not reach the network.
	configs.InitCredentials(0, "")

	return appServer, ts
}

// ==================== helpers ====================

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewBuffer(b)
}

func assertSuccess(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected success, got %d: %s", resp.StatusCode, string(body))
	}
}

func assertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", expected, resp.StatusCode, string(body))
	}
}

func decodeData(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data to be map, got %T", result["data"])
	}
	return data
}

// ==================== health ====================

func TestHealthHandler(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()

	assertSuccess(t, resp)

	data := decodeData(t, resp)
	if data["status"] != "healthy" {
		t.Errorf("expected status=healthy, got %v", data["status"])
	}
	if data["service"] != "teleturbo" {
		t.Errorf("expected service=teleturbo, got %v", data["service"])
	}
}

// ==================== accounts ====================

func TestAccountLifecycle(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Post(ts.URL+"/api/v1/accounts", "application/json",
		jsonBody(CreateAccountRequest{Name: "primary", Phone: "+15551234567"}))
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertSuccess(t, resp)

	data := decodeData(t, resp)
	if data["key"] != "acc_1" {
		t.Errorf("expected key=acc_1, got %v", data["key"])
	}
	if data["phone"] != "+15551234567" {
		t.Errorf("expected phone to round-trip, got %v", data["phone"])
	}
	if data["device"] == nil {
		t.Error("expected a generated device profile")
	}

	resp, err = http.Get(ts.URL + "/api/v1/accounts")
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertSuccess(t, resp)

	var listResult struct {
		Data []accounts.Account `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResult); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(listResult.Data) != 1 {
		t.Fatalf("expected 1 account, got %d", len(listResult.Data))
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/accounts/1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertSuccess(t, resp)

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/accounts/1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertStatusCode(t, resp, http.StatusNotFound)
}

// ==================== system ====================

func TestSystemInfoHandler(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Get(ts.URL + "/api/v1/system")
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertSuccess(t, resp)

	data := decodeData(t, resp)
	if data["cpu_cores"].(float64) < 1 {
		t.Errorf("expected at least 1 cpu core, got %v", data["cpu_cores"])
	}
	p := data["parallelism"].(float64)
	if p < 4 || p > 16 {
		t.Errorf("expected parallelism in [4,16], got %v", p)
	}
}

// ==================== icon ====================

func TestGenerateIconHandler(t *testing.T) {
	_, ts := setupTestApp(t)
	outDir := t.TempDir()

	resp, err := http.Post(ts.URL+"/api/v1/icon", "application/json",
		jsonBody(GenerateIconRequest{Dir: outDir}))
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertSuccess(t, resp)

	data := decodeData(t, resp)
	if data["message"] != "Icon SVG created" {
		t.Errorf("expected confirmation message, got %v", data["message"])
	}

	content, err := os.ReadFile(filepath.Join(outDir, "appicon.svg"))
	if err != nil {
		t.Fatalf("expected appicon.svg to exist: %v", err)
	}
	if string(content) != icon.Document {
		t.Error("written icon does not match the document")
	}
}

func TestGenerateIconHandlerFailure(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Post(ts.URL+"/api/v1/icon", "application/json",
		jsonBody(GenerateIconRequest{Dir: filepath.Join(t.TempDir(), "does", "not", "exist")}))
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertStatusCode(t, resp, http.StatusInternalServerError)
}

// ==================== downloads ====================

func TestDownloadHandlersWithoutTasks(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Get(ts.URL + "/api/v1/downloads")
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertSuccess(t, resp)

	data := decodeData(t, resp)
	if data["count"].(float64) != 0 {
		t.Errorf("expected 0 downloads, got %v", data["count"])
	}

	resp, err = http.Get(ts.URL + "/api/v1/downloads/deadbeef")
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertStatusCode(t, resp, http.StatusNotFound)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/downloads/deadbeef", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertStatusCode(t, resp, http.StatusNotFound)
}

func TestStartDownloadRejectsBadLink(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Post(ts.URL+"/api/v1/downloads", "application/json",
		jsonBody(DownloadRequest{Link: "https://example.com/not/telegram"}))
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertStatusCode(t, resp, http.StatusInternalServerError)
}

func TestStartDownloadWithoutCredentials(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Post(ts.URL+"/api/v1/downloads", "application/json",
		jsonBody(DownloadRequest{Link: "https://t.me/somechannel/1"}))
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()

	// Credentials are unset in tests, so the client cannot start.
	assertStatusCode(t, resp, http.StatusInternalServerError)
}

// ==================== login ====================

func TestLoginStatusWithoutCredentials(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Get(ts.URL + "/api/v1/login/status")
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertStatusCode(t, resp, http.StatusInternalServerError)
}

func TestStartLoginValidatesBody(t *testing.T) {
	_, ts := setupTestApp(t)

	resp, err := http.Post(ts.URL+"/api/v1/login/start", "application/json",
		jsonBody(map[string]any{}))
	if err != nil {
		t.Fatalf("failed to request: %v", err)
	}
	defer resp.Body.Close()
	assertStatusCode(t, resp, http.StatusBadRequest)
}
