// Package server 通过HTTP对外提供扫描、匹配和指纹识别接口
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"TanZhen/internal/assessment"
	"TanZhen/internal/utils"
)

// maxBodyBytes 请求体上限，扫描结果通常只有几KB
const maxBodyBytes = 1 << 20

// Server API服务器
type Server struct {
	assessor  *assessment.Assessor
	collector assessment.InventoryCollector
	router    *gin.Engine
	logger    *utils.Logger
}

// New 创建API服务器，collector 为 nil 时资产采集接口返回 501
func New(assessor *assessment.Assessor, collector assessment.InventoryCollector) *Server {
	s := &Server{
		assessor:  assessor,
		collector: collector,
		logger:    utils.NewLogger("server"),
	}
	s.initRouter()
	return s
}

// Router 获取路由
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) initRouter() {
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.router.Use(corsMiddleware())
	s.router.Use(bodyLimit(maxBodyBytes))

	s.router.POST("/network-scan", s.handleNetworkScan)
	s.router.POST("/vulnerability-assessment", s.handleVulnerabilityAssessment)
	s.router.POST("/fingerprint", s.handleFingerprint)
	s.router.POST("/collect-target-info", s.handleCollectTargetInfo)
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

// Run 监听 addr，ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		// 扫描可能持续到整体期限，不限制写超时
		WriteTimeout:   0,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP 服务监听于 %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("正在关闭 HTTP 服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.
			WithField("status", c.Writer.Status()).
			WithField("latency", time.Since(start).String()).
			Info("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
