package cli

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"TanZhen/internal/model"
	"TanZhen/internal/report"
)

type OutputFormatter struct {
	format string
}

func NewOutputFormatter(format string) *OutputFormatter {
	return &OutputFormatter{format: format}
}

func (of *OutputFormatter) PrintReport(r model.Report, outputFile string) error {
	output, err := of.Format(r)
	if err != nil {
		return err
	}

	if outputFile != "" {
		return os.WriteFile(outputFile, []byte(output), 0644)
	}

	fmt.Print(output)
	return nil
}

func (of *OutputFormatter) Format(r model.Report) (string, error) {
	switch strings.ToLower(of.format) {
	case "json":
		data, err := report.Marshal(r)
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case "csv":
		return of.formatCSV(r)
	default:
		return of.formatText(r), nil
	}
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "🔥"
	case model.SeverityHigh:
		return "🔴"
	case model.SeverityMedium:
		return "🟠"
	case model.SeverityLow:
		return "🟡"
	default:
		return "⚪"
	}
}

func sortedPorts(r model.Report) []int {
	ports := make([]int, 0, len(r.OpenPorts))
	for key := range r.OpenPorts {
		if port, err := strconv.Atoi(key); err == nil {
			ports = append(ports, port)
		}
	}
	sort.Ints(ports)
	return ports
}

// formatText nmap风格输出
func (of *OutputFormatter) formatText(r model.Report) string {
	var builder strings.Builder

	builder.WriteString("\n📡 探针 漏洞评估报告\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")

	status := "不可达"
	if r.IsAlive {
		status = "存活"
	}
	builder.WriteString(fmt.Sprintf("目标: %s\n", r.TargetIP))
	if r.ReverseDNS != nil {
		builder.WriteString(fmt.Sprintf("主机名: %s\n", *r.ReverseDNS))
	}
	builder.WriteString(fmt.Sprintf("状态: %s\n", status))
	builder.WriteString(fmt.Sprintf("时间: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")))

	ports := sortedPorts(r)
	if len(ports) == 0 {
		builder.WriteString("❌ 未发现开放端口\n")
	} else {
		builder.WriteString(fmt.Sprintf("🔍 开放端口 (%d):\n", len(ports)))
		builder.WriteString(strings.Repeat("─", 80) + "\n")

		w := tabwriter.NewWriter(&builder, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "端口\t服务\tBanner")
		for _, port := range ports {
			key := strconv.Itoa(port)
			banner := firstLine(r.Banners[key])
			if banner == "" {
				banner = "-"
			}
			fmt.Fprintf(w, "%d/tcp\t%s\t%s\n", port, r.OpenPorts[key].Service, banner)
		}
		w.Flush()
	}

	if len(r.Findings) == 0 {
		builder.WriteString("\n✅ 未匹配到已知漏洞特征\n")
	} else {
		builder.WriteString(fmt.Sprintf("\n⚠️  发现 %d 个问题:\n", r.Summary.Total))
		builder.WriteString(strings.Repeat("═", 60) + "\n")

		for _, f := range r.Findings {
			builder.WriteString(fmt.Sprintf("%s %s [%s] 端口 %d/tcp\n", severityIcon(f.Severity), f.SignatureID, f.Severity, f.Port))

			desc := f.Description
			if len([]rune(desc)) > 100 {
				desc = string([]rune(desc)[:100]) + "..."
			}
			if desc != "" {
				builder.WriteString(fmt.Sprintf("   📝 %s\n", desc))
			}
			if f.MatchedBannerExcerpt != "" {
				builder.WriteString(fmt.Sprintf("   🔎 %s\n", f.MatchedBannerExcerpt))
			}
		}

		builder.WriteString("\n📊 ")
		counts := make([]string, 0, len(model.SeverityOrder))
		for _, sev := range model.SeverityOrder {
			counts = append(counts, fmt.Sprintf("%s(%d)", sev, r.Summary.BySeverity[sev.String()]))
		}
		builder.WriteString(strings.Join(counts, " | ") + "\n")
	}

	builder.WriteString("\n" + strings.Repeat("═", 60) + "\n")
	builder.WriteString("✨ 评估完成！\n")

	return builder.String()
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// formatCSV 每条结果一行；没有结果的开放端口也输出一行
func (of *OutputFormatter) formatCSV(r model.Report) (string, error) {
	var builder strings.Builder
	writer := csv.NewWriter(&builder)

	writer.Write([]string{"目标", "端口", "服务", "特征ID", "严重等级", "Banner摘录", "描述"})

	hasFinding := make(map[int]bool)
	for _, f := range r.Findings {
		hasFinding[f.Port] = true
		writer.Write([]string{
			r.TargetIP,
			strconv.Itoa(f.Port),
			r.OpenPorts[strconv.Itoa(f.Port)].Service,
			f.SignatureID,
			f.Severity.String(),
			f.MatchedBannerExcerpt,
			f.Description,
		})
	}
	for _, port := range sortedPorts(r) {
		if hasFinding[port] {
			continue
		}
		writer.Write([]string{r.TargetIP, strconv.Itoa(port), r.OpenPorts[strconv.Itoa(port)].Service, "", "", "", ""})
	}

	writer.Flush()
	return builder.String(), writer.Error()
}
