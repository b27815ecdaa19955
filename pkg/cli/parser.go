package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"TanZhen/internal/model"
)

// ErrHelp 用户请求了帮助信息
var ErrHelp = errors.New("显示帮助")

type Parser struct {
	Options model.ScanOptions
	output  io.Writer
}

func NewParser() *Parser {
	return &Parser{output: os.Stdout}
}

// Parse 解析命令行参数（不含程序名）
func (p *Parser) Parse(args []string) error {
	var help bool

	fs := flag.NewFlagSet("TanZhen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&p.Options.Target, "target", "", "目标IP地址或域名")
	fs.IntVar(&p.Options.CustomPort, "custom-port", model.DefaultCustomPort, "额外扫描的自定义端口 (0 表示不扫描)")
	fs.IntVar(&p.Options.Timeout, "timeout", 2, "单次连接超时时间(秒)")
	fs.IntVar(&p.Options.BannerTimeout, "banner-timeout", 2, "banner读取超时时间(秒)")
	fs.IntVar(&p.Options.Deadline, "deadline", 60, "整体扫描期限(秒, 0 表示不限)")
	fs.IntVar(&p.Options.Threads, "threads", 16, "并发线程数")
	fs.Float64Var(&p.Options.Rate, "rate", 0, "每秒最多发起的连接数 (0 表示不限)")
	fs.StringVar(&p.Options.CatalogFile, "catalog", "", "JSON格式的漏洞特征库文件")
	fs.StringVar(&p.Options.DatabasePath, "db", "", "SQLite特征库路径")
	fs.BoolVar(&p.Options.ImportCatalog, "import-catalog", false, "把特征库导入到 -db 指定的数据库")
	fs.BoolVar(&p.Options.AllowPartial, "allow-partial", false, "期限到达时基于部分结果出具报告")
	fs.StringVar(&p.Options.OutputFile, "output", "", "输出文件")
	fs.StringVar(&p.Options.OutputFormat, "format", "text", "输出格式 (text, json, csv)")
	fs.StringVar(&p.Options.Listen, "listen", "", "以HTTP服务方式运行的监听地址 (如 :8080)")
	fs.StringVar(&p.Options.LogFormat, "log-format", "text", "日志格式 (text, json)")
	fs.BoolVar(&p.Options.Verbose, "verbose", false, "显示详细信息")
	fs.BoolVar(&help, "help", false, "显示帮助")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			p.printHelp()
			return ErrHelp
		}
		return &model.InputError{Field: "flags", Reason: err.Error()}
	}

	if help {
		p.printHelp()
		return ErrHelp
	}

	return p.validate()
}

func (p *Parser) validate() error {
	o := &p.Options
	o.OutputFormat = strings.ToLower(o.OutputFormat)
	o.LogFormat = strings.ToLower(o.LogFormat)

	switch {
	case o.Target == "" && o.Listen == "" && !o.ImportCatalog:
		return &model.InputError{Field: "target", Reason: "必须指定目标地址"}
	case o.ImportCatalog && o.DatabasePath == "":
		return &model.InputError{Field: "db", Reason: "导入特征库需要指定 -db"}
	case o.CustomPort != 0 && !model.ValidPort(o.CustomPort):
		return &model.InputError{Field: "custom-port", Value: strconv.Itoa(o.CustomPort), Reason: "端口必须在 1-65535 之间"}
	case o.Timeout <= 0:
		return &model.InputError{Field: "timeout", Value: strconv.Itoa(o.Timeout), Reason: "必须大于0"}
	case o.BannerTimeout <= 0:
		return &model.InputError{Field: "banner-timeout", Value: strconv.Itoa(o.BannerTimeout), Reason: "必须大于0"}
	case o.Deadline < 0:
		return &model.InputError{Field: "deadline", Value: strconv.Itoa(o.Deadline), Reason: "不能为负数"}
	case o.Threads < 1:
		return &model.InputError{Field: "threads", Value: strconv.Itoa(o.Threads), Reason: "至少为1"}
	case o.Rate < 0:
		return &model.InputError{Field: "rate", Value: fmt.Sprint(o.Rate), Reason: "不能为负数"}
	}

	switch o.OutputFormat {
	case "text", "json", "csv":
	default:
		return &model.InputError{Field: "format", Value: o.OutputFormat, Reason: "支持 text, json, csv"}
	}
	switch o.LogFormat {
	case "text", "json":
	default:
		return &model.InputError{Field: "log-format", Value: o.LogFormat, Reason: "支持 text, json"}
	}

	return nil
}

func (p *Parser) printHelp() {
	w := p.output
	fmt.Fprintln(w, "探针 - 单目标TCP侦察与漏洞特征匹配工具")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "使用方法: TanZhen [选项]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "选项:")
	fmt.Fprintln(w, "  -target string         目标IP地址或域名")
	fmt.Fprintln(w, "  -custom-port int       额外扫描的自定义端口 (默认: 9999, 0 表示不扫描)")
	fmt.Fprintln(w, "  -timeout int           单次连接超时时间(秒) (默认: 2)")
	fmt.Fprintln(w, "  -banner-timeout int    banner读取超时时间(秒) (默认: 2)")
	fmt.Fprintln(w, "  -deadline int          整体扫描期限(秒) (默认: 60)")
	fmt.Fprintln(w, "  -threads int           并发线程数 (默认: 16)")
	fmt.Fprintln(w, "  -rate float            每秒最多发起的连接数 (默认: 不限)")
	fmt.Fprintln(w, "  -catalog string        JSON格式的漏洞特征库文件")
	fmt.Fprintln(w, "  -db string             SQLite特征库路径")
	fmt.Fprintln(w, "  -import-catalog        把特征库导入到 -db 指定的数据库")
	fmt.Fprintln(w, "  -allow-partial         期限到达时基于部分结果出具报告")
	fmt.Fprintln(w, "  -output string         输出文件")
	fmt.Fprintln(w, "  -format string         输出格式 (text, json, csv) (默认: text)")
	fmt.Fprintln(w, "  -listen string         以HTTP服务方式运行")
	fmt.Fprintln(w, "  -log-format string     日志格式 (text, json) (默认: text)")
	fmt.Fprintln(w, "  -verbose               显示详细信息")
	fmt.Fprintln(w, "  -help                  显示帮助")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "示例:")
	fmt.Fprintln(w, "  TanZhen -target 192.168.1.10")
	fmt.Fprintln(w, "  TanZhen -target example.com -catalog signatures.json -output report.json -format json")
	fmt.Fprintln(w, "  TanZhen -catalog signatures.json -db data/signatures.db -import-catalog")
	fmt.Fprintln(w, "  TanZhen -listen :8080 -db data/signatures.db")
}
