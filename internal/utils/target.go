package utils

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"TanZhen/internal/model"
)

var hostnameRe = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*\.?$`)

// ExtractHostname 从目标字符串中提取主机名
func ExtractHostname(target string) string {
	target = strings.TrimSpace(target)

	// 如果包含://，则尝试解析为URL
	if strings.Contains(target, "://") {
		parsedURL, err := url.Parse(target)
		if err == nil && parsedURL.Host != "" {
			if hostname := parsedURL.Hostname(); hostname != "" {
				return hostname
			}
		}
	}

	// 移除可能的路径部分
	if idx := strings.Index(target, "/"); idx != -1 {
		return target[:idx]
	}

	return target
}

// ValidateTarget 校验并规范化目标地址，失败时返回 *model.InputError
func ValidateTarget(target string) (string, error) {
	host := ExtractHostname(target)
	if host == "" {
		return "", &model.InputError{Field: "target", Reason: "必须指定目标地址"}
	}

	// IPv6 字面量可能带方括号
	trimmed := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if ip := net.ParseIP(trimmed); ip != nil {
		return ip.String(), nil
	}

	if len(host) > 253 || !hostnameRe.MatchString(host) {
		return "", &model.InputError{Field: "target", Value: target, Reason: "无法解析的IP地址或主机名"}
	}

	// 全数字的顶级标签只可能是写错的IP地址
	host = strings.TrimSuffix(host, ".")
	if tld := host[strings.LastIndex(host, ".")+1:]; strings.Trim(tld, "0123456789") == "" {
		return "", &model.InputError{Field: "target", Value: target, Reason: "无效的IP地址"}
	}

	// 主机名不区分大小写
	return strings.ToLower(host), nil
}
