package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"TanZhen/internal/assessment"
	"TanZhen/internal/model"
	"TanZhen/internal/testutil"
	"TanZhen/internal/vulndb"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noDNS struct{}

func (noDNS) LookupHost(ctx context.Context, host string) ([]string, error) {
	return nil, errors.New("no such host")
}

func (noDNS) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	return nil, errors.New("no PTR record")
}

type staticCollector map[string]any

func (s staticCollector) Collect(ctx context.Context, target string, creds assessment.Credentials) (map[string]any, error) {
	return s, nil
}

func newTestServer(t *testing.T, services map[int]testutil.Service, collector assessment.InventoryCollector) *Server {
	t.Helper()
	catalog, err := vulndb.NewCatalog("test", []vulndb.SignatureRecord{{
		ID:              "CVE-X",
		AffectedService: "HTTP",
		MatchPattern:    "Apache/2.2",
		Severity:        "HIGH",
		Description:     "旧版 Apache",
	}})
	if err != nil {
		t.Fatal(err)
	}

	cfg := assessment.DefaultConfig()
	cfg.ProbeTimeout = time.Second
	cfg.BannerTimeout = time.Second
	cfg.FingerprintTimeout = time.Second
	a, err := assessment.New(cfg, catalog,
		assessment.WithDialer(testutil.NewPipeDialer(services)),
		assessment.WithResolver(noDNS{}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return New(a, collector)
}

func post(s *Server, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apiError {
	t.Helper()
	var resp struct {
		Success bool     `json:"success"`
		Error   apiError `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("错误响应无法解析: %v, body=%s", err, w.Body.String())
	}
	if resp.Success {
		t.Errorf("错误响应的 success 应为 false")
	}
	return resp.Error
}

func TestNetworkScanThenAssessment(t *testing.T) {
	s := newTestServer(t, map[int]testutil.Service{
		80: {Banner: "HTTP/1.1 200 OK\r\nServer: Apache/2.2.15\r\n\r\n"},
	}, nil)

	w := post(s, "/network-scan", `{"ip_address": "192.168.1.10"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("/network-scan 状态码 %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "network_scan_192_168_1_10.json") {
		t.Errorf("Content-Disposition = %q", got)
	}
	scanJSON := w.Body.String()
	if !strings.Contains(scanJSON, `"open_ports"`) || !strings.Contains(scanJSON, "Apache/2.2.15") {
		t.Errorf("扫描结果缺少字段: %s", scanJSON)
	}

	// network_scan_data 以字符串形式传入
	body, _ := json.Marshal(map[string]string{
		"ip_address":        "192.168.1.10",
		"network_scan_data": scanJSON,
	})
	w = post(s, "/vulnerability-assessment", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("/vulnerability-assessment 状态码 %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "vulnerability_report_192_168_1_10.json") {
		t.Errorf("Content-Disposition = %q", got)
	}

	var r model.Report
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("报告无法解析: %v", err)
	}
	if len(r.Findings) != 1 || r.Findings[0].SignatureID != "CVE-X" || r.Findings[0].Port != 80 {
		t.Errorf("报告结果不符: %+v", r.Findings)
	}
	if r.TargetIP != "192.168.1.10" || r.Summary.Total != 1 {
		t.Errorf("报告字段不符: %+v", r)
	}
}

func TestVulnerabilityAssessmentAcceptsObject(t *testing.T) {
	s := newTestServer(t, nil, nil)

	body := `{
		"ip_address": "10.0.0.5",
		"network_scan_data": {
			"ip_address": "10.0.0.5",
			"open_ports": {"80": {"service": "HTTP", "state": "open"}},
			"banners": {"80": "Server: Apache/2.2.3"}
		}
	}`
	w := post(s, "/vulnerability-assessment", body)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"CVE-X"`) {
		t.Errorf("报告中缺少 CVE-X: %s", w.Body.String())
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		kind   string
	}{
		{"扫描缺少IP", "/network-scan", `{}`, http.StatusBadRequest, "input"},
		{"扫描IP无效", "/network-scan", `{"ip_address": "bad host"}`, http.StatusBadRequest, "input"},
		{"评估缺少IP", "/vulnerability-assessment", `{"network_scan_data": {}}`, http.StatusBadRequest, "input"},
		{"评估缺少扫描数据", "/vulnerability-assessment", `{"ip_address": "10.0.0.5"}`, http.StatusBadRequest, "input"},
		{"扫描数据不是JSON", "/vulnerability-assessment", `{"ip_address": "10.0.0.5", "network_scan_data": "not json"}`, http.StatusBadRequest, "input"},
		{"banner属于未开放端口", "/vulnerability-assessment", `{"ip_address": "10.0.0.5", "network_scan_data": {"banners": {"80": "x"}}}`, http.StatusUnprocessableEntity, "match"},
		{"端口键无效", "/vulnerability-assessment", `{"ip_address": "10.0.0.5", "network_scan_data": {"open_ports": {"http": {"service": "HTTP"}}}}`, http.StatusUnprocessableEntity, "match"},
		{"请求体无效", "/fingerprint", `{`, http.StatusBadRequest, "input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(s, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("状态码 %d, 期望 %d: %s", w.Code, tt.status, w.Body.String())
			}
			if e := decodeError(t, w); e.Kind != tt.kind || e.Message == "" {
				t.Errorf("错误 = %+v, 期望 kind=%s", e, tt.kind)
			}
		})
	}
}

func TestFingerprintEndpoint(t *testing.T) {
	s := newTestServer(t, map[int]testutil.Service{445: {Hang: true}}, nil)

	w := post(s, "/fingerprint", `{"ip_address": "10.0.0.5"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			OS string `json:"os"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Data.OS != string(model.OSWindows) {
		t.Errorf("响应 = %s", w.Body.String())
	}
}

func TestCollectTargetInfo(t *testing.T) {
	noCollector := newTestServer(t, map[int]testutil.Service{445: {Hang: true}}, nil)
	w := post(noCollector, "/collect-target-info", `{"ip_address": "10.0.0.5"}`)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("未配置采集器时状态码 %d, 期望 501", w.Code)
	}

	collector := staticCollector{"hostname": "WIN-01"}

	windows := newTestServer(t, map[int]testutil.Service{445: {Hang: true}}, collector)
	w = post(windows, "/collect-target-info", `{"ip_address": "10.0.0.5", "username": "admin"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "system_info_10_0_0_5.json") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}

	other := newTestServer(t, map[int]testutil.Service{22: {Greeting: "SSH-2.0-OpenSSH_9.6"}}, collector)
	w = post(other, "/collect-target-info", `{"ip_address": "10.0.0.6"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非 Windows 目标状态码 %d, 期望 400", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil, nil)

	for _, path := range []string{"/network-scan", "/vulnerability-assessment"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		s.Router().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("%s OPTIONS 状态码 %d", path, w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("%s 缺少 CORS 头", path)
		}
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run 返回错误: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run 未在取消后退出")
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("状态码 %d", w.Code)
	}
}
