package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	versionDigitsRe = regexp.MustCompile(`\d+(?:\.\d+)*`)
	numberRe        = regexp.MustCompile(`\d+`)
)

// VersionParser 版本号解析器
type VersionParser struct{}

func NewVersionParser() *VersionParser {
	return &VersionParser{}
}

// NormalizeVersion 标准化版本号
func (vp *VersionParser) NormalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")
	version = strings.TrimPrefix(version, "V")
	version = strings.TrimPrefix(version, "version")
	version = strings.TrimPrefix(version, "Version")
	version = strings.TrimSpace(version)

	if match := versionDigitsRe.FindString(version); match != "" {
		return match
	}

	return version
}

// ExtractProductVersion 从banner中提取紧跟在产品名之后的版本号，
// 例如 "Server: Apache/2.2.15 (CentOS)" 和产品 "Apache" 得到 "2.2.15"，
// "SSH-2.0-OpenSSH_8.9p1" 和 "OpenSSH" 得到 "8.9"。
func (vp *VersionParser) ExtractProductVersion(banner, product string) string {
	product = strings.TrimSpace(product)
	if banner == "" || product == "" {
		return ""
	}

	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(product) + `[/_\s:-]*v?(\d+(?:\.\d+)*)`)
	if err != nil {
		return ""
	}

	match := re.FindStringSubmatch(banner)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// CompareVersions 比较版本号，返回 -1, 0, 1
func (vp *VersionParser) CompareVersions(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	maxLen := len(parts1)
	if len(parts2) > maxLen {
		maxLen = len(parts2)
	}

	for i := 0; i < maxLen; i++ {
		var num1, num2 int

		if i < len(parts1) {
			num1 = vp.parsePart(parts1[i])
		}

		if i < len(parts2) {
			num2 = vp.parsePart(parts2[i])
		}

		if num1 > num2 {
			return 1
		}
		if num1 < num2 {
			return -1
		}
	}

	return 0
}

func (vp *VersionParser) parsePart(part string) int {
	match := numberRe.FindString(part)
	if match == "" {
		return 0
	}

	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}
