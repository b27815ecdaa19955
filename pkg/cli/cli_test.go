package cli

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TanZhen/internal/model"
)

func newTestParser() *Parser {
	return &Parser{output: io.Discard}
}

func TestParseDefaults(t *testing.T) {
	p := newTestParser()
	if err := p.Parse([]string{"-target", "192.168.1.10"}); err != nil {
		t.Fatalf("Parse 失败: %v", err)
	}

	o := p.Options
	if o.CustomPort != 9999 || o.Timeout != 2 || o.BannerTimeout != 2 || o.Deadline != 60 || o.Threads != 16 {
		t.Errorf("默认值不符: %+v", o)
	}
	if o.OutputFormat != "text" || o.LogFormat != "text" || o.Rate != 0 {
		t.Errorf("默认值不符: %+v", o)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := [][]string{
		{},
		{"-target", "x", "-custom-port", "70000"},
		{"-target", "x", "-timeout", "0"},
		{"-target", "x", "-threads", "0"},
		{"-target", "x", "-deadline", "-1"},
		{"-target", "x", "-rate", "-5"},
		{"-target", "x", "-format", "xml"},
		{"-target", "x", "-log-format", "yaml"},
		{"-import-catalog"},
		{"-target", "x", "-no-such-flag"},
	}
	for _, args := range tests {
		err := newTestParser().Parse(args)
		var inputErr *model.InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("Parse(%v) 期望 InputError, 实际得到 %v", args, err)
		}
	}
}

func TestParseModesWithoutTarget(t *testing.T) {
	if err := newTestParser().Parse([]string{"-listen", ":8080"}); err != nil {
		t.Errorf("服务模式不需要 -target: %v", err)
	}
	if err := newTestParser().Parse([]string{"-import-catalog", "-db", "x.db", "-catalog", "c.json"}); err != nil {
		t.Errorf("导入模式不需要 -target: %v", err)
	}
	if err := newTestParser().Parse([]string{"-help"}); !errors.Is(err, ErrHelp) {
		t.Errorf("期望 ErrHelp, 实际得到 %v", err)
	}
}

func sampleReport() model.Report {
	name := "web01.lab.local"
	return model.Report{
		TargetIP:    "10.0.0.5",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		IsAlive:     true,
		ReverseDNS:  &name,
		OpenPorts: map[string]model.OpenPortEntry{
			"22": {Service: model.ServiceSSH, State: model.StateOpen},
			"80": {Service: model.ServiceHTTP, State: model.StateOpen},
		},
		Banners: map[string]string{"22": "SSH-2.0-OpenSSH_9.6", "80": "HTTP/1.1 200 OK\r\nServer: Apache/2.2.15"},
		Findings: []model.VulnerabilityFinding{
			{SignatureID: "CVE-X", Port: 80, Severity: model.SeverityHigh, MatchedBannerExcerpt: "Server: Apache/2.2.15", Description: "旧版 Apache"},
		},
		Summary: model.Summary{Total: 1, BySeverity: map[string]int{"CRITICAL": 0, "HIGH": 1, "MEDIUM": 0, "LOW": 0, "INFO": 0}},
	}
}

func TestFormatText(t *testing.T) {
	out, err := NewOutputFormatter("text").Format(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"10.0.0.5", "web01.lab.local", "22/tcp", "80/tcp", "HTTP/1.1 200 OK", "CVE-X", "HIGH(1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("文本输出缺少 %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "22/tcp") > strings.Index(out, "80/tcp") {
		t.Error("端口应按升序输出")
	}
}

func TestFormatCSV(t *testing.T) {
	out, err := NewOutputFormatter("csv").Format(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("CSV 无法解析: %v", err)
	}
	// 表头 + 一条结果 + 没有结果的 22 端口
	if len(rows) != 3 {
		t.Fatalf("期望 3 行, 实际得到 %d: %v", len(rows), rows)
	}
	if rows[1][1] != "80" || rows[1][3] != "CVE-X" || rows[1][4] != "HIGH" {
		t.Errorf("结果行不符: %v", rows[1])
	}
	if rows[2][1] != "22" || rows[2][3] != "" {
		t.Errorf("端口行不符: %v", rows[2])
	}
}

func TestPrintReportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := NewOutputFormatter("json").PrintReport(sampleReport(), path); err != nil {
		t.Fatalf("PrintReport 失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"signature_id": "CVE-X"`) || !strings.Contains(string(data), `"target_ip": "10.0.0.5"`) {
		t.Errorf("JSON 输出不符:\n%s", data)
	}
}
