package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"TanZhen/internal/assessment"
	"TanZhen/internal/model"
	"TanZhen/internal/report"
)

type targetRequest struct {
	IPAddress string `json:"ip_address"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Domain    string `json:"domain"`
}

type assessmentRequest struct {
	IPAddress string `json:"ip_address"`
	// NetworkScanData 可以是对象，也可以是序列化后的JSON字符串
	NetworkScanData json.RawMessage `json:"network_scan_data"`
}

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func fail(c *gin.Context, status int, kind, msg string) {
	c.JSON(status, gin.H{"success": false, "error": apiError{Kind: kind, Message: msg}})
}

// writeError 按错误类型映射状态码
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		inputErr   *model.InputError
		matchErr   *model.MatchError
		catalogErr *model.CatalogError
		partialErr *model.PartialResultError
	)

	switch {
	case errors.As(err, &inputErr):
		fail(c, http.StatusBadRequest, "input", err.Error())
	case errors.As(err, &matchErr):
		fail(c, http.StatusUnprocessableEntity, "match", err.Error())
	case errors.As(err, &partialErr):
		fail(c, http.StatusGatewayTimeout, "partial", err.Error())
	case errors.As(err, &catalogErr):
		s.logger.Error("特征库错误: %v", err)
		fail(c, http.StatusInternalServerError, "catalog", err.Error())
	case errors.Is(err, assessment.ErrNoCollector):
		fail(c, http.StatusNotImplemented, "unsupported", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, "canceled", err.Error())
	default:
		s.logger.Error("请求处理失败: %v", err)
		fail(c, http.StatusInternalServerError, "internal", err.Error())
	}
}

// attachment 以文件下载的形式返回缩进的JSON
func attachment(c *gin.Context, name string, v any) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

func bindTarget(c *gin.Context) (targetRequest, bool) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "input", "请求格式无效: "+err.Error())
		return req, false
	}
	if strings.TrimSpace(req.IPAddress) == "" {
		fail(c, http.StatusBadRequest, "input", "IP Address is required")
		return req, false
	}
	return req, true
}

// handleNetworkScan 执行扫描并返回 ScanReport 文件。
// 期限到达时仍返回已完成的部分，partial 字段为 true。
func (s *Server) handleNetworkScan(c *gin.Context) {
	req, ok := bindTarget(c)
	if !ok {
		return
	}

	scan, err := s.assessor.RunAssessment(c.Request.Context(), req.IPAddress)
	var partial *model.PartialResultError
	if err != nil && !errors.As(err, &partial) {
		s.writeError(c, err)
		return
	}
	if partial != nil {
		c.Header("X-Scan-Partial", "true")
	}

	attachment(c, report.DownloadName("network_scan", scan.Target), scan)
}

func (s *Server) handleVulnerabilityAssessment(c *gin.Context) {
	var req assessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "input", "请求格式无效: "+err.Error())
		return
	}
	if strings.TrimSpace(req.IPAddress) == "" {
		fail(c, http.StatusBadRequest, "input", "IP Address is required")
		return
	}

	scan, err := decodeScanData(req.NetworkScanData)
	if err != nil {
		s.writeError(c, err)
		return
	}

	r, err := s.assessor.MatchAndReport(req.IPAddress, scan)
	if err != nil {
		s.writeError(c, err)
		return
	}

	data, err := report.Marshal(r)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.FileName(r.TargetIP)+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// decodeScanData 兼容对象和字符串两种形式
func decodeScanData(raw json.RawMessage) (model.ScanReport, error) {
	var scan model.ScanReport

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return scan, &model.InputError{Field: "network_scan_data", Reason: "Network Scan Data is required"}
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return scan, &model.InputError{Field: "network_scan_data", Reason: "Invalid network scan data format"}
		}
		raw = []byte(text)
	}

	if err := json.Unmarshal(raw, &scan); err != nil {
		var matchErr *model.MatchError
		if errors.As(err, &matchErr) {
			return scan, matchErr
		}
		return scan, &model.InputError{Field: "network_scan_data", Reason: "Invalid network scan data format"}
	}
	return scan, nil
}

func (s *Server) handleFingerprint(c *gin.Context) {
	req, ok := bindTarget(c)
	if !ok {
		return
	}

	family, err := s.assessor.FingerprintOS(c.Request.Context(), req.IPAddress)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"ip_address": req.IPAddress,
			"os":         family,
		},
	})
}

func (s *Server) handleCollectTargetInfo(c *gin.Context) {
	req, ok := bindTarget(c)
	if !ok {
		return
	}

	creds := assessment.Credentials{Username: req.Username, Password: req.Password, Domain: req.Domain}
	info, err := s.assessor.CollectInventory(c.Request.Context(), req.IPAddress, creds, s.collector)
	if err != nil {
		s.writeError(c, err)
		return
	}

	attachment(c, report.DownloadName("system_info", req.IPAddress), info)
}
