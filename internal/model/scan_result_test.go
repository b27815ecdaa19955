package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestScanReportUnmarshalFillsMissingService(t *testing.T) {
	data := `{
		"ip_address": "10.0.0.5",
		"open_ports": {
			"80": {"state": "open"},
			"22": {"service": "SSH", "state": "open"},
			"12345": {"state": "open"},
			"443": {"service": "HTTPS", "state": "closed"}
		},
		"banners": {"80": "HTTP/1.1 200 OK"}
	}`

	var sr ScanReport
	if err := json.Unmarshal([]byte(data), &sr); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if sr.Target != "10.0.0.5" {
		t.Errorf("Target = %q, 期望回退到 ip_address", sr.Target)
	}

	want := map[int]string{22: ServiceSSH, 80: ServiceHTTP, 12345: ""}
	if len(sr.OpenPorts) != len(want) {
		t.Fatalf("期望 %d 个开放端口, 实际得到 %v", len(want), sr.OpenPorts)
	}
	for _, p := range sr.OpenPorts {
		if got, ok := want[p.Port]; !ok || got != p.ServiceHint {
			t.Errorf("端口 %d 服务 = %q, 期望 %q", p.Port, p.ServiceHint, got)
		}
	}
	if sr.BannerText(80) != "HTTP/1.1 200 OK" {
		t.Errorf("banner 丢失: %v", sr.Banners)
	}
}

func TestScanReportUnmarshalRejectsBadPortKey(t *testing.T) {
	var sr ScanReport
	err := json.Unmarshal([]byte(`{"target":"10.0.0.5","open_ports":{"http":{"state":"open"}}}`), &sr)
	var matchErr *MatchError
	if !errors.As(err, &matchErr) {
		t.Errorf("期望 MatchError, 实际得到 %v", err)
	}
}

func TestLookupService(t *testing.T) {
	if got := LookupService(CommonPorts, 3389); got != ServiceRDP {
		t.Errorf("LookupService(3389) = %q, 期望 %q", got, ServiceRDP)
	}
	if got := LookupService(CommonPorts, 1); got != "" {
		t.Errorf("未知端口应返回空字符串, 实际得到 %q", got)
	}
}
