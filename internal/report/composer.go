// Package report 把匹配结果组装成对外的JSON报告
package report

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"TanZhen/internal/model"
)

// Composer 报告生成器，now 仅用于测试替换时间
type Composer struct {
	now func() time.Time
}

func NewComposer() *Composer {
	return &Composer{now: time.Now}
}

// Compose 按严重等级降序排列结果（同级保持输入顺序），写入生成时间并统计汇总。
// 除 generated_at 外，相同输入总是产生逐字节相同的输出。
func (c *Composer) Compose(targetIP string, scan model.ScanReport, findings []model.VulnerabilityFinding) model.Report {
	sorted := make([]model.VulnerabilityFinding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})

	bySeverity := make(map[string]int, len(model.SeverityOrder))
	for _, sev := range model.SeverityOrder {
		bySeverity[sev.String()] = 0
	}
	for _, f := range sorted {
		bySeverity[f.Severity.String()]++
	}

	return model.Report{
		TargetIP:    targetIP,
		GeneratedAt: c.now().UTC().Truncate(time.Second),
		IsAlive:     scan.IsAlive,
		ReverseDNS:  scan.ReverseDNS,
		OpenPorts:   scan.OpenPortsMap(),
		Banners:     scan.BannersMap(),
		Findings:    sorted,
		Summary: model.Summary{
			Total:      len(sorted),
			BySeverity: bySeverity,
		},
	}
}

// Marshal 缩进格式的报告JSON
func Marshal(r model.Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "    ")
}

// FileName 下载报告的文件名
func FileName(targetIP string) string {
	return DownloadName("vulnerability_report", targetIP)
}

// DownloadName 形如 <prefix>_192_168_1_10.json
func DownloadName(prefix, targetIP string) string {
	return prefix + "_" + strings.NewReplacer(".", "_", ":", "_").Replace(targetIP) + ".json"
}
