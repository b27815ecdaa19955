package model

import "fmt"

// InputError 目标地址等输入无效，在任何网络操作之前返回
type InputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("无效的输入 %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("无效的输入 %s=%q: %s", e.Field, e.Value, e.Reason)
}

// CatalogError 漏洞特征库条目格式错误，加载时直接失败
type CatalogError struct {
	Source      string
	Index       int
	SignatureID string
	Reason      string
}

func (e *CatalogError) Error() string {
	if e.SignatureID != "" {
		return fmt.Sprintf("特征库 %s 第 %d 条 (%s) 无效: %s", e.Source, e.Index, e.SignatureID, e.Reason)
	}
	return fmt.Sprintf("特征库 %s 第 %d 条无效: %s", e.Source, e.Index, e.Reason)
}

// PartialResultError 总体期限到达前未能扫描完整个端口目录。
// 伴随返回的 ScanReport 带有 Partial 标记。
type PartialResultError struct {
	Stage   string
	Scanned int
	Total   int
}

func (e *PartialResultError) Error() string {
	return fmt.Sprintf("扫描未完成(%s): 仅完成 %d/%d", e.Stage, e.Scanned, e.Total)
}

// MatchError 传入匹配阶段的扫描结果格式错误
type MatchError struct {
	Reason string
}

func (e *MatchError) Error() string {
	return "扫描结果无效: " + e.Reason
}
