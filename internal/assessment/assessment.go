// Package assessment 串联各阶段：存活/反向DNS → 端口扫描 → banner → 匹配 → 报告
package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"TanZhen/internal/model"
	"TanZhen/internal/report"
	"TanZhen/internal/scanner"
	"TanZhen/internal/utils"
	"TanZhen/internal/vulndb"
)

// Config 评估参数
type Config struct {
	ProbeTimeout       time.Duration
	BannerTimeout      time.Duration
	FingerprintTimeout time.Duration
	// Deadline 整个扫描阶段的总期限，0 表示不限
	Deadline   time.Duration
	Threads    int
	Rate       float64
	CustomPort int
	// AllowPartial 允许对未完成的扫描结果继续匹配并出具报告
	AllowPartial bool
}

func DefaultConfig() Config {
	return Config{
		ProbeTimeout:       2 * time.Second,
		BannerTimeout:      2 * time.Second,
		FingerprintTimeout: 3 * time.Second,
		Deadline:           60 * time.Second,
		Threads:            scanner.DefaultThreads,
		CustomPort:         model.DefaultCustomPort,
	}
}

func (c Config) validate() error {
	switch {
	case c.ProbeTimeout <= 0:
		return &model.InputError{Field: "timeout", Value: c.ProbeTimeout.String(), Reason: "必须大于0"}
	case c.BannerTimeout <= 0:
		return &model.InputError{Field: "banner_timeout", Value: c.BannerTimeout.String(), Reason: "必须大于0"}
	case c.FingerprintTimeout <= 0:
		return &model.InputError{Field: "fingerprint_timeout", Value: c.FingerprintTimeout.String(), Reason: "必须大于0"}
	case c.Deadline < 0:
		return &model.InputError{Field: "deadline", Value: c.Deadline.String(), Reason: "不能为负数"}
	case c.Threads < 1:
		return &model.InputError{Field: "threads", Value: fmt.Sprint(c.Threads), Reason: "至少为1"}
	case c.Rate < 0:
		return &model.InputError{Field: "rate", Value: fmt.Sprint(c.Rate), Reason: "不能为负数"}
	}
	return nil
}

// Option 替换网络相关的依赖，主要用于测试
type Option func(*options)

type options struct {
	dialer           scanner.Dialer
	resolver         scanner.Resolver
	services         []model.ServiceInfo
	fingerprintPorts []int
	alivePorts       []int
}

func WithDialer(d scanner.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithResolver(r scanner.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithServiceCatalog 替换端口目录
func WithServiceCatalog(services []model.ServiceInfo) Option {
	return func(o *options) { o.services = services }
}

func WithFingerprintPorts(ports ...int) Option {
	return func(o *options) { o.fingerprintPorts = ports }
}

func WithAlivePorts(ports ...int) Option {
	return func(o *options) { o.alivePorts = ports }
}

// Assessor 对外的三个入口。自身不保存任何跨调用的状态，可并发使用。
type Assessor struct {
	cfg           Config
	services      []model.ServiceInfo
	portScanner   *scanner.PortScanner
	grabber       *scanner.BannerGrabber
	fingerprinter *scanner.Fingerprinter
	reachability  *scanner.Reachability
	matcher       *vulndb.Matcher
	composer      *report.Composer
	logger        *utils.Logger
}

func New(cfg Config, catalog *vulndb.Catalog, opts ...Option) (*Assessor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, errors.New("特征库不能为空")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	services := o.services
	if services == nil {
		var err error
		services, err = model.ServiceCatalog(cfg.CustomPort)
		if err != nil {
			return nil, err
		}
	}

	limiter := scanner.NewLimiter(cfg.Rate, cfg.Threads)
	prober := scanner.NewProber(o.dialer, cfg.ProbeTimeout, limiter)
	fpProber := scanner.NewProber(o.dialer, cfg.FingerprintTimeout, limiter)

	return &Assessor{
		cfg:           cfg,
		services:      services,
		portScanner:   scanner.NewPortScanner(prober, cfg.Threads),
		grabber:       scanner.NewBannerGrabber(prober, cfg.BannerTimeout, cfg.Threads),
		fingerprinter: scanner.NewFingerprinter(fpProber, o.fingerprintPorts),
		reachability:  scanner.NewReachability(prober, o.alivePorts, o.resolver),
		matcher:       vulndb.NewMatcher(catalog),
		composer:      report.NewComposer(),
		logger:        utils.NewLogger("assessment"),
	}, nil
}

// RunAssessment 执行存活检测、反向DNS、端口扫描和banner抓取。
//
// 调用方取消 ctx 时丢弃所有结果并返回 ctx.Err()。总期限到达时返回带 Partial 标记的
// ScanReport 和 *model.PartialResultError，不会静默截断。
func (a *Assessor) RunAssessment(ctx context.Context, target string) (model.ScanReport, error) {
	host, err := utils.ValidateTarget(target)
	if err != nil {
		return model.ScanReport{}, err
	}

	id := uuid.New().String()
	logger := a.logger.WithField("assessment_id", id).WithField("target", host)

	scanCtx := ctx
	if a.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, a.cfg.Deadline)
		defer cancel()
	}

	start := time.Now()
	sr := model.ScanReport{
		AssessmentID: id,
		Target:       host,
		Banners:      map[int]model.Banner{},
	}

	sr.IsAlive = a.reachability.IsAlive(scanCtx, host)
	sr.ReverseDNS = a.reachability.ReverseDNS(scanCtx, host)
	if err := ctx.Err(); err != nil {
		return model.ScanReport{}, err
	}
	logger.Debug("存活: %v", sr.IsAlive)

	logger.Info("开始扫描 %d 个端口", len(a.services))
	open, scanErr := a.portScanner.ScanPorts(scanCtx, host, a.services)
	if ctx.Err() != nil {
		return model.ScanReport{}, ctx.Err()
	}
	var partial *model.PartialResultError
	if scanErr != nil && !errors.As(scanErr, &partial) {
		return model.ScanReport{}, scanErr
	}
	sr.OpenPorts = open

	sr.Banners = a.grabber.GrabAll(scanCtx, host, open)
	if ctx.Err() != nil {
		return model.ScanReport{}, ctx.Err()
	}
	if partial == nil && len(sr.Banners) < len(open) {
		partial = &model.PartialResultError{Stage: "banner", Scanned: len(sr.Banners), Total: len(open)}
	}

	if partial != nil {
		sr.Partial = true
		logger.Warn("扫描未完成: %v", partial)
		return sr, partial
	}

	logger.Info("扫描完成，发现 %d 个开放端口，耗时 %v", len(open), time.Since(start))
	return sr, nil
}

// MatchAndReport 对扫描结果进行特征匹配并生成报告。未完成的扫描结果只有在
// AllowPartial 打开时才会出具报告。
func (a *Assessor) MatchAndReport(target string, scan model.ScanReport) (model.Report, error) {
	host, err := utils.ValidateTarget(target)
	if err != nil {
		return model.Report{}, err
	}
	if scan.Target != "" && !strings.EqualFold(scan.Target, host) {
		return model.Report{}, &model.MatchError{Reason: fmt.Sprintf("扫描目标 %s 与请求目标 %s 不一致", scan.Target, host)}
	}
	if scan.Partial && !a.cfg.AllowPartial {
		return model.Report{}, &model.MatchError{Reason: "扫描结果不完整，未允许基于部分结果出具报告"}
	}

	findings, err := a.matcher.Match(scan)
	if err != nil {
		return model.Report{}, err
	}

	r := a.composer.Compose(host, scan, findings)
	a.logger.WithField("target", host).Info("报告生成完成，共 %d 条结果", r.Summary.Total)
	return r, nil
}

// FingerprintOS 判断目标是否像Windows主机，供调用方决定是否采集主机资产信息
func (a *Assessor) FingerprintOS(ctx context.Context, target string) (model.OSFamily, error) {
	host, err := utils.ValidateTarget(target)
	if err != nil {
		return model.OSUnknown, err
	}

	family := a.fingerprinter.Fingerprint(ctx, host)
	if err := ctx.Err(); err != nil {
		return model.OSUnknown, err
	}
	return family, nil
}

// Assess 完整流程。部分结果在 AllowPartial 打开时随报告一起返回 *model.PartialResultError。
func (a *Assessor) Assess(ctx context.Context, target string) (model.Report, error) {
	scan, err := a.RunAssessment(ctx, target)
	var partial *model.PartialResultError
	if err != nil && !(errors.As(err, &partial) && a.cfg.AllowPartial) {
		return model.Report{}, err
	}

	r, mErr := a.MatchAndReport(scan.Target, scan)
	if mErr != nil {
		return model.Report{}, mErr
	}
	if partial != nil {
		return r, partial
	}
	return r, nil
}
