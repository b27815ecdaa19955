package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"TanZhen/internal/assessment"
	"TanZhen/internal/model"
	"TanZhen/internal/server"
	"TanZhen/internal/utils"
	"TanZhen/internal/vulndb"
	"TanZhen/pkg/cli"
)

func main() {
	// 解析命令行参数
	parser := cli.NewParser()
	if err := parser.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "使用方法: %s -target <目标地址> [选项]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "使用 -help 查看完整帮助信息\n")
		os.Exit(2)
	}

	options := parser.Options
	utils.SetJSON(options.LogFormat == "json")
	// 报告写到标准输出时日志改走标准错误，避免混进 JSON/CSV
	if options.OutputFile == "" && options.OutputFormat != "text" {
		utils.SetOutput(os.Stderr)
	}
	if options.Verbose {
		utils.SetDebug(true)
	}
	logger := utils.NewLogger("main")

	logger.Info("启动探针 v1.0")

	catalog, err := loadCatalog(options, logger)
	if err != nil {
		logger.Error("加载漏洞特征库失败: %v", err)
		os.Exit(1)
	}
	logger.Info("已加载特征库 %s，共 %d 条规则", catalog.Source(), catalog.Len())

	if options.ImportCatalog && options.Target == "" && options.Listen == "" {
		return
	}

	cfg := assessment.Config{
		ProbeTimeout:       time.Duration(options.Timeout) * time.Second,
		BannerTimeout:      time.Duration(options.BannerTimeout) * time.Second,
		FingerprintTimeout: 3 * time.Second,
		Deadline:           time.Duration(options.Deadline) * time.Second,
		Threads:            options.Threads,
		Rate:               options.Rate,
		CustomPort:         options.CustomPort,
		AllowPartial:       options.AllowPartial,
	}
	assessor, err := assessment.New(cfg, catalog)
	if err != nil {
		logger.Error("初始化失败: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if options.Listen != "" {
		if !options.Verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		// 资产采集需要目标平台的管理接口，服务模式下默认不提供
		srv := server.New(assessor, nil)
		if err := srv.Run(ctx, options.Listen); err != nil {
			logger.Error("HTTP 服务异常退出: %v", err)
			os.Exit(1)
		}
		return
	}

	if options.Verbose {
		logger.Info("扫描目标: %s", options.Target)
		logger.Info("超时时间: %d秒, banner超时: %d秒, 总期限: %d秒, 线程数: %d",
			options.Timeout, options.BannerTimeout, options.Deadline, options.Threads)
	}

	startTime := time.Now()
	r, err := assessor.Assess(ctx, options.Target)
	var partial *model.PartialResultError
	switch {
	case errors.As(err, &partial) && options.AllowPartial:
		logger.Warn("报告基于部分扫描结果: %v", partial)
	case err != nil:
		logger.Error("评估失败: %v", err)
		if partial != nil {
			logger.Error("可以增大 -deadline 或使用 -allow-partial")
		}
		os.Exit(exitCode(err))
	}

	if len(r.Findings) > 0 {
		logger.Info("最高风险等级: %s", r.Findings[0].Severity)
	}

	// 输出结果
	formatter := cli.NewOutputFormatter(options.OutputFormat)
	if err := formatter.PrintReport(r, options.OutputFile); err != nil {
		logger.Error("输出结果失败: %v", err)
		os.Exit(1)
	}

	if options.Verbose {
		logger.Info("评估完成，总耗时: %v", time.Since(startTime))
	}
}

// loadCatalog 选择特征库来源：-catalog 文件 > -db 中已有的数据 > 内置特征库。
// 指定 -import-catalog 时把选中的特征库整体写入 -db。
func loadCatalog(options model.ScanOptions, logger *utils.Logger) (*vulndb.Catalog, error) {
	var store *vulndb.Store
	if options.DatabasePath != "" {
		var err error
		store, err = vulndb.OpenStore(options.DatabasePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
	}

	var (
		catalog *vulndb.Catalog
		err     error
	)
	switch {
	case options.CatalogFile != "":
		catalog, err = vulndb.LoadCatalogFile(options.CatalogFile)
	case store != nil && !options.ImportCatalog:
		var has bool
		has, err = store.HasData()
		if err == nil && has {
			catalog, err = store.LoadCatalog()
		} else if err == nil {
			logger.Warn("数据库 %s 中没有特征，使用内置特征库", options.DatabasePath)
			catalog, err = vulndb.DefaultCatalog()
		}
	default:
		catalog, err = vulndb.DefaultCatalog()
	}
	if err != nil {
		return nil, err
	}

	if options.ImportCatalog {
		if err := store.ReplaceCatalog(catalog); err != nil {
			return nil, fmt.Errorf("导入特征库失败: %w", err)
		}
		logger.Info("已将 %d 条规则导入 %s", catalog.Len(), options.DatabasePath)
		if history, err := store.GetImportHistory(); err == nil {
			for _, h := range history {
				logger.Debug("导入记录 #%d: %s 来源 %s, %d 条", h.ID, h.ImportedAt, h.Source, h.Count)
			}
		}
	}

	return catalog, nil
}

func exitCode(err error) int {
	var inputErr *model.InputError
	if errors.As(err, &inputErr) {
		return 2
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}
