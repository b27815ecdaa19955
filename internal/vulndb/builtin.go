package vulndb

// DefaultSignatures 内置特征库，未指定 -catalog / -db 时使用。
// 顺序即同等级下的排序顺序。
func DefaultSignatures() []SignatureRecord {
	return []SignatureRecord{
		{
			ID:               "CVE-2021-41773",
			AffectedService:  "HTTP,HTTPS,HTTP Alternate",
			Product:          "Apache",
			VersionPredicate: "=2.4.49",
			Severity:         "CRITICAL",
			Description:      "Apache HTTP Server 2.4.49 路径穿越，可读取任意文件并在启用CGI时执行代码",
			Remediation:      "升级至 2.4.51 或更高版本",
		},
		{
			ID:               "CVE-2021-42013",
			AffectedService:  "HTTP,HTTPS,HTTP Alternate",
			Product:          "Apache",
			VersionPredicate: "=2.4.50",
			Severity:         "CRITICAL",
			Description:      "Apache HTTP Server 2.4.50 对 CVE-2021-41773 的修复不完整",
			Remediation:      "升级至 2.4.51 或更高版本",
		},
		{
			ID:              "CVE-2017-7269",
			AffectedService: "HTTP,HTTPS,HTTP Alternate",
			MatchPattern:    "Microsoft-IIS/6.0",
			Severity:        "CRITICAL",
			Description:     "IIS 6.0 WebDAV ScStoragePathFromUrl 缓冲区溢出",
			Remediation:     "禁用 WebDAV 并迁移到受支持的 Windows Server 版本",
		},
		{
			ID:              "CVE-2011-2523",
			AffectedService: "FTP",
			MatchPattern:    "vsFTPd 2.3.4",
			Severity:        "CRITICAL",
			Description:     "vsftpd 2.3.4 源码包被植入后门，可获取root shell",
			Remediation:     "从可信来源重新安装 vsftpd",
		},
		{
			ID:               "CVE-2019-10149",
			AffectedService:  "SMTP",
			Product:          "Exim",
			VersionPredicate: ">=4.87, <=4.91",
			Severity:         "CRITICAL",
			Description:      "Exim deliver_message 远程命令执行",
			Remediation:      "升级 Exim 至 4.92 或更高版本",
		},
		{
			ID:               "CVE-2024-6387",
			AffectedService:  "SSH",
			Product:          "OpenSSH",
			VersionPredicate: ">=8.5, <9.8",
			Severity:         "HIGH",
			Description:      "OpenSSH sshd 信号处理竞争条件 (regreSSHion)，可能导致未认证远程代码执行",
			Remediation:      "升级 OpenSSH 至 9.8p1 或设置 LoginGraceTime 0",
		},
		{
			ID:              "CVE-2015-3306",
			AffectedService: "FTP",
			MatchRegex:      `ProFTPD 1\.3\.5(\s|$|[^.\d])`,
			Severity:        "HIGH",
			Description:     "ProFTPD 1.3.5 mod_copy 允许未认证复制任意文件",
			Remediation:     "升级 ProFTPD 或禁用 mod_copy",
		},
		{
			ID:               "CVE-2021-23017",
			AffectedService:  "HTTP,HTTPS,HTTP Alternate",
			Product:          "nginx",
			VersionPredicate: ">=0.6.18, <1.21.0",
			Severity:         "HIGH",
			Description:      "nginx DNS 解析器 1 字节越界写，可导致拒绝服务",
			Remediation:      "升级 nginx 至 1.21.0 / 1.20.1 或更高版本",
		},
		{
			ID:              "EOL-APACHE-2.2",
			AffectedService: "HTTP,HTTPS,HTTP Alternate",
			MatchPattern:    "Apache/2.2",
			Severity:        "HIGH",
			Description:     "Apache HTTP Server 2.2 已停止维护，存在多个未修复漏洞",
			Remediation:     "迁移到受支持的 2.4 版本",
		},
		{
			ID:              "EXPOSED-TELNET",
			AffectedService: "Telnet",
			Severity:        "HIGH",
			Description:     "Telnet 以明文传输凭据",
			Remediation:     "关闭 Telnet，改用 SSH",
		},
		{
			ID:              "EXPOSED-SMB",
			AffectedService: "SMB",
			Severity:        "MEDIUM",
			Description:     "SMB 对外开放，需确认已修复 MS17-010 并禁用 SMBv1",
			Remediation:     "在边界防火墙限制 445 端口",
		},
		{
			ID:              "EXPOSED-RDP",
			AffectedService: "RDP",
			Severity:        "MEDIUM",
			Description:     "RDP 对外开放，易受暴力破解与 BlueKeep 类漏洞影响",
			Remediation:     "启用 NLA 并通过 VPN 访问",
		},
		{
			ID:              "WINRM-CLEARTEXT",
			AffectedService: "WinRM HTTP",
			Severity:        "MEDIUM",
			Description:     "WinRM 监听未加密的 HTTP 端口",
			Remediation:     "仅启用 WinRM HTTPS 监听",
		},
		{
			ID:              "FTP-CLEARTEXT",
			AffectedService: "FTP",
			Severity:        "LOW",
			Description:     "FTP 以明文传输凭据和数据",
			Remediation:     "改用 SFTP 或 FTPS",
		},
		{
			ID:              "HTTP-SERVER-DISCLOSURE",
			AffectedService: "HTTP,HTTPS,HTTP Alternate",
			MatchRegex:      `Server:\s*[^\r\n]*\d+\.\d+`,
			Severity:        "INFO",
			Description:     "HTTP Server 头泄露软件版本",
			Remediation:     "配置服务器隐藏版本信息",
		},
	}
}

// DefaultCatalog 编译内置特征库
func DefaultCatalog() (*Catalog, error) {
	return NewCatalog("builtin", DefaultSignatures())
}
