package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity 漏洞严重等级，数值越大越严重
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// SeverityOrder 从高到低
var SeverityOrder = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

var severityNames = map[Severity]string{
	SeverityCritical: "CRITICAL",
	SeverityHigh:     "HIGH",
	SeverityMedium:   "MEDIUM",
	SeverityLow:      "LOW",
	SeverityInfo:     "INFO",
}

// ParseSeverity 解析等级名称，不区分大小写
func ParseSeverity(s string) (Severity, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("未知的严重等级: %q", s)
}

// Rank CRITICAL=5 … INFO=1
func (s Severity) Rank() int {
	return int(s)
}

func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("无效的严重等级: %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	sev, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// VulnerabilitySignature 特征库中的一条规则，扫描期间只读
type VulnerabilitySignature struct {
	ID              string   `json:"id"`
	AffectedService string   `json:"affected_service"`
	MatchPattern    string   `json:"match_pattern,omitempty"`
	MatchRegex      string   `json:"match_regex,omitempty"`
	Product         string   `json:"product,omitempty"`
	VersionPred     string   `json:"version_predicate,omitempty"`
	Severity        Severity `json:"severity"`
	Description     string   `json:"description"`
	Remediation     string   `json:"remediation,omitempty"`
}

// RequiresBanner 没有任何banner条件的规则只依赖端口/服务本身
func (s VulnerabilitySignature) RequiresBanner() bool {
	return s.MatchPattern != "" || s.MatchRegex != "" || s.VersionPred != ""
}

// VulnerabilityFinding 一条命中的规则
type VulnerabilityFinding struct {
	SignatureID          string   `json:"signature_id"`
	Port                 int      `json:"port"`
	Severity             Severity `json:"severity"`
	MatchedBannerExcerpt string   `json:"matched_banner_excerpt"`
	Description          string   `json:"description"`
}

// Summary 报告汇总
type Summary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
}

// Report 一次评估的最终报告，构造后不再修改
type Report struct {
	TargetIP    string                   `json:"target_ip"`
	GeneratedAt time.Time                `json:"generated_at"`
	IsAlive     bool                     `json:"is_alive"`
	ReverseDNS  *string                  `json:"reverse_dns"`
	OpenPorts   map[string]OpenPortEntry `json:"open_ports"`
	Banners     map[string]string        `json:"banners"`
	Findings    []VulnerabilityFinding   `json:"findings"`
	Summary     Summary                  `json:"summary"`
}

// OSFamily 操作系统指纹的分类结果
type OSFamily string

const (
	OSWindows OSFamily = "Windows"
	OSUnknown OSFamily = "Unknown"
)
