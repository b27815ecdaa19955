package model

import "fmt"

// 服务名称，与扫描目录中的条目一一对应
const (
	ServiceFTP         = "FTP"
	ServiceSSH         = "SSH"
	ServiceTelnet      = "Telnet"
	ServiceSMTP        = "SMTP"
	ServiceDNS         = "DNS"
	ServiceHTTP        = "HTTP"
	ServicePOP3        = "POP3"
	ServiceIMAP        = "IMAP"
	ServiceHTTPS       = "HTTPS"
	ServiceSMB         = "SMB"
	ServiceRDP         = "RDP"
	ServiceWinRMHTTP   = "WinRM HTTP"
	ServiceWinRMHTTPS  = "WinRM HTTPS"
	ServiceHTTPAlt     = "HTTP Alternate"
	ServiceCustom      = "Custom Port"
	DefaultCustomPort  = 9999
	MinPort, MaxPort   = 1, 65535
	serviceCatalogSize = 15
)

// ServiceInfo 端口与服务名的静态映射
type ServiceInfo struct {
	Port        int    `json:"port"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CommonPorts 固定扫描目录（不含自定义端口）
var CommonPorts = []ServiceInfo{
	{21, ServiceFTP, "文件传输协议"},
	{22, ServiceSSH, "安全外壳协议"},
	{23, ServiceTelnet, "远程登录协议"},
	{25, ServiceSMTP, "简单邮件传输协议"},
	{53, ServiceDNS, "域名系统"},
	{80, ServiceHTTP, "网页服务器"},
	{110, ServicePOP3, "邮局协议第3版"},
	{143, ServiceIMAP, "互联网消息访问协议"},
	{443, ServiceHTTPS, "安全网页服务器"},
	{445, ServiceSMB, "服务器消息块"},
	{3389, ServiceRDP, "远程桌面协议"},
	{5985, ServiceWinRMHTTP, "Windows远程管理(HTTP)"},
	{5986, ServiceWinRMHTTPS, "Windows远程管理(HTTPS)"},
	{8080, ServiceHTTPAlt, "备用HTTP"},
}

// ValidPort 端口号是否在 1-65535 之间
func ValidPort(port int) bool {
	return port >= MinPort && port <= MaxPort
}

// ServiceCatalog 返回本次扫描使用的端口目录：固定端口加一个自定义端口。
// customPort 为 0 表示不追加；与固定端口重复时沿用固定端口的服务名。
func ServiceCatalog(customPort int) ([]ServiceInfo, error) {
	catalog := make([]ServiceInfo, 0, serviceCatalogSize)
	catalog = append(catalog, CommonPorts...)

	if customPort == 0 {
		return catalog, nil
	}
	if !ValidPort(customPort) {
		return nil, &InputError{
			Field:  "custom_port",
			Value:  fmt.Sprint(customPort),
			Reason: "端口号必须在 1-65535 之间",
		}
	}

	for _, svc := range catalog {
		if svc.Port == customPort {
			return catalog, nil
		}
	}

	return append(catalog, ServiceInfo{customPort, ServiceCustom, "用户自定义端口"}), nil
}

// LookupService 按端口号查找服务名，不在目录中时返回空字符串
func LookupService(catalog []ServiceInfo, port int) string {
	for _, svc := range catalog {
		if svc.Port == port {
			return svc.Name
		}
	}
	return ""
}
