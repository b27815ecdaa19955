package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// StateOpen 报告中开放端口的状态值
const StateOpen = "open"

// PortProbeResult 单个端口的探测结果
type PortProbeResult struct {
	Port        int    `json:"port"`
	Open        bool   `json:"open"`
	ServiceHint string `json:"service_hint,omitempty"`
}

// Banner 开放端口返回的原始文本，可能为空
type Banner struct {
	Port    int    `json:"port"`
	RawText string `json:"raw_text"`
}

// ScanReport 一次评估的扫描阶段输出
type ScanReport struct {
	AssessmentID string
	Target       string
	IsAlive      bool
	ReverseDNS   *string
	OpenPorts    []PortProbeResult
	Banners      map[int]Banner
	// Partial 总体期限到达时置位，此时 OpenPorts 只覆盖部分目录
	Partial bool
}

// OpenPortEntry 报告中 open_ports 的值
type OpenPortEntry struct {
	Service string `json:"service"`
	State   string `json:"state"`
}

type scanReportWire struct {
	AssessmentID string                   `json:"assessment_id,omitempty"`
	Target       string                   `json:"target"`
	IPAddress    string                   `json:"ip_address,omitempty"`
	IsAlive      bool                     `json:"is_alive"`
	ReverseDNS   *string                  `json:"reverse_dns"`
	OpenPorts    map[string]OpenPortEntry `json:"open_ports"`
	Banners      map[string]string        `json:"banners"`
	Partial      bool                     `json:"partial,omitempty"`
}

// OpenPortsMap 以字符串端口号为键输出开放端口
func (sr ScanReport) OpenPortsMap() map[string]OpenPortEntry {
	out := make(map[string]OpenPortEntry, len(sr.OpenPorts))
	for _, p := range sr.OpenPorts {
		if !p.Open {
			continue
		}
		out[strconv.Itoa(p.Port)] = OpenPortEntry{Service: p.ServiceHint, State: StateOpen}
	}
	return out
}

// BannersMap 以字符串端口号为键输出banner
func (sr ScanReport) BannersMap() map[string]string {
	out := make(map[string]string, len(sr.Banners))
	for port, b := range sr.Banners {
		out[strconv.Itoa(port)] = b.RawText
	}
	return out
}

// BannerText 返回端口的banner文本，没有时为空字符串
func (sr ScanReport) BannerText(port int) string {
	return sr.Banners[port].RawText
}

func (sr ScanReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(scanReportWire{
		AssessmentID: sr.AssessmentID,
		Target:       sr.Target,
		IsAlive:      sr.IsAlive,
		ReverseDNS:   sr.ReverseDNS,
		OpenPorts:    sr.OpenPortsMap(),
		Banners:      sr.BannersMap(),
		Partial:      sr.Partial,
	})
}

func (sr *ScanReport) UnmarshalJSON(data []byte) error {
	var wire scanReportWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := ScanReport{
		AssessmentID: wire.AssessmentID,
		Target:       wire.Target,
		IsAlive:      wire.IsAlive,
		ReverseDNS:   wire.ReverseDNS,
		Banners:      make(map[int]Banner, len(wire.Banners)),
		Partial:      wire.Partial,
	}
	if out.Target == "" {
		out.Target = wire.IPAddress
	}

	for key, entry := range wire.OpenPorts {
		port, err := strconv.Atoi(key)
		if err != nil {
			return &MatchError{Reason: fmt.Sprintf("无效的端口键 %q", key)}
		}
		if entry.State != "" && entry.State != StateOpen {
			continue
		}
		// 没有服务名时按常用端口表补全，否则限定服务的规则无法生效
		service := entry.Service
		if service == "" {
			service = LookupService(CommonPorts, port)
		}
		out.OpenPorts = append(out.OpenPorts, PortProbeResult{Port: port, Open: true, ServiceHint: service})
	}
	sort.Slice(out.OpenPorts, func(i, j int) bool {
		return out.OpenPorts[i].Port < out.OpenPorts[j].Port
	})

	for key, text := range wire.Banners {
		port, err := strconv.Atoi(key)
		if err != nil {
			return &MatchError{Reason: fmt.Sprintf("无效的banner端口键 %q", key)}
		}
		out.Banners[port] = Banner{Port: port, RawText: text}
	}

	*sr = out
	return nil
}

// Validate 检查扫描结果的不变量：端口合法且不重复，banner只属于开放端口
func (sr ScanReport) Validate() error {
	seen := make(map[int]bool, len(sr.OpenPorts))
	open := make(map[int]bool, len(sr.OpenPorts))
	for _, p := range sr.OpenPorts {
		if !ValidPort(p.Port) {
			return &MatchError{Reason: fmt.Sprintf("端口号超出范围: %d", p.Port)}
		}
		if seen[p.Port] {
			return &MatchError{Reason: fmt.Sprintf("端口重复: %d", p.Port)}
		}
		seen[p.Port] = true
		if p.Open {
			open[p.Port] = true
		}
	}

	for port, b := range sr.Banners {
		if !open[port] {
			return &MatchError{Reason: fmt.Sprintf("端口 %d 有banner但不在开放端口中", port)}
		}
		if b.Port != 0 && b.Port != port {
			return &MatchError{Reason: fmt.Sprintf("banner端口不一致: %d != %d", b.Port, port)}
		}
	}

	return nil
}

// ScanOptions 扫描选项
type ScanOptions struct {
	Target        string
	CustomPort    int
	Timeout       int
	BannerTimeout int
	Deadline      int
	Threads       int
	Rate          float64
	CatalogFile   string
	DatabasePath  string
	ImportCatalog bool
	AllowPartial  bool
	OutputFile    string
	OutputFormat  string // json, text, csv
	Listen        string
	LogFormat     string // text, json
	Verbose       bool
}
