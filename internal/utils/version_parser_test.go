package utils

import (
	"errors"
	"testing"

	"TanZhen/internal/model"
)

func TestExtractProductVersion(t *testing.T) {
	vp := NewVersionParser()

	tests := []struct {
		banner  string
		product string
		want    string
	}{
		{"HTTP/1.1 200 OK\r\nServer: Apache/2.2.15 (CentOS)", "Apache", "2.2.15"},
		{"SSH-2.0-OpenSSH_8.9p1 Ubuntu-3ubuntu0.6", "OpenSSH", "8.9"},
		{"220 (vsFTPd 2.3.4)", "vsftpd", "2.3.4"},
		{"220 mail.example.com ESMTP Exim 4.89 Mon, 01 Jan", "Exim", "4.89"},
		{"Server: nginx", "nginx", ""},
		{"", "nginx", ""},
		{"Server: nginx/1.18.0", "", ""},
	}

	for _, tt := range tests {
		if got := vp.ExtractProductVersion(tt.banner, tt.product); got != tt.want {
			t.Errorf("ExtractProductVersion(%q, %q) = %q, 期望 %q", tt.banner, tt.product, got, tt.want)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	vp := NewVersionParser()

	tests := []struct {
		a, b string
		want int
	}{
		{"2.2.15", "2.4", -1},
		{"2.4.49", "2.4.49", 0},
		{"2.4", "2.4.0", 0},
		{"10.0", "9.9.9", 1},
		{"8.9p1", "8.9", 0},
	}

	for _, tt := range tests {
		if got := vp.CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, 期望 %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalizeVersion(t *testing.T) {
	vp := NewVersionParser()
	if got := vp.NormalizeVersion(" v1.20.1-beta "); got != "1.20.1" {
		t.Errorf("期望 1.20.1, 实际得到 %q", got)
	}
}

func TestValidateTarget(t *testing.T) {
	valid := map[string]string{
		"192.168.1.10":               "192.168.1.10",
		" 10.0.0.1 ":                 "10.0.0.1",
		"http://scanme.example.com/": "scanme.example.com",
		"Scanme.Example.COM":         "scanme.example.com",
		"host-01.lab.local.":         "host-01.lab.local",
		"[::1]":                      "::1",
	}
	for in, want := range valid {
		got, err := ValidateTarget(in)
		if err != nil {
			t.Errorf("ValidateTarget(%q) 返回错误: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ValidateTarget(%q) = %q, 期望 %q", in, got, want)
		}
	}

	for _, in := range []string{"", "   ", "bad host", "-leading.example.com", "a_b.example.com", "300.1.2.3", "10.0.0"} {
		_, err := ValidateTarget(in)
		var inputErr *model.InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("ValidateTarget(%q) 应返回 InputError, 实际得到 %v", in, err)
		}
	}
}
