package vulndb

import (
	"strings"
	"unicode/utf8"

	"TanZhen/internal/model"
	"TanZhen/internal/utils"
)

// excerptLimit 命中摘录的最大字节数
const excerptLimit = 200

// Matcher 用特征库评估扫描结果
type Matcher struct {
	catalog *Catalog
	parser  *utils.VersionParser
	logger  *utils.Logger
}

func NewMatcher(catalog *Catalog) *Matcher {
	return &Matcher{
		catalog: catalog,
		parser:  utils.NewVersionParser(),
		logger:  utils.NewLogger("matcher"),
	}
}

// Match 对每个开放端口评估服务名相符的规则。输出按特征库顺序、同一规则内按端口升序，
// 同一 (端口, 规则ID) 只出现一次。没有命中时返回空切片。
func (m *Matcher) Match(scan model.ScanReport) ([]model.VulnerabilityFinding, error) {
	if err := scan.Validate(); err != nil {
		return nil, err
	}

	findings := []model.VulnerabilityFinding{}
	type key struct {
		port int
		id   string
	}
	seen := make(map[key]bool)

	for _, cs := range m.catalog.signatures {
		for _, p := range scan.OpenPorts {
			if !p.Open || !cs.appliesTo(p.ServiceHint) {
				continue
			}

			excerpt, ok := m.evaluate(cs, scan.BannerText(p.Port))
			if !ok {
				continue
			}

			k := key{p.Port, cs.sig.ID}
			if seen[k] {
				continue
			}
			seen[k] = true

			m.logger.Debug("端口 %d 命中规则 %s (%s)", p.Port, cs.sig.ID, cs.sig.Severity)
			findings = append(findings, model.VulnerabilityFinding{
				SignatureID:          cs.sig.ID,
				Port:                 p.Port,
				Severity:             cs.sig.Severity,
				MatchedBannerExcerpt: excerpt,
				Description:          cs.sig.Description,
			})
		}
	}

	return findings, nil
}

func (cs compiledSignature) appliesTo(service string) bool {
	service = strings.ToLower(strings.TrimSpace(service))
	for _, s := range cs.services {
		if s == AnyService || s == service {
			return true
		}
	}
	return false
}

// evaluate 规则中出现的条件全部成立才算命中；没有banner条件的规则只看服务
func (m *Matcher) evaluate(cs compiledSignature, banner string) (string, bool) {
	if !cs.sig.RequiresBanner() {
		return excerptAt(banner, 0), true
	}
	if banner == "" {
		return "", false
	}

	pos := -1
	if cs.pattern != nil {
		loc := cs.pattern.FindStringIndex(banner)
		if loc == nil {
			return "", false
		}
		pos = loc[0]
	}

	if cs.regex != nil {
		loc := cs.regex.FindStringIndex(banner)
		if loc == nil {
			return "", false
		}
		if pos < 0 {
			pos = loc[0]
		}
	}

	if cs.predicate != nil {
		version := m.parser.ExtractProductVersion(banner, cs.sig.Product)
		if !cs.predicate.Satisfied(version) {
			return "", false
		}
		if pos < 0 {
			if loc := cs.product.FindStringIndex(banner); loc != nil {
				pos = loc[0]
			}
		}
	}

	if pos < 0 {
		pos = 0
	}
	return excerptAt(banner, pos), true
}

// excerptAt 返回 pos 所在的那一行，超长时截断
func excerptAt(text string, pos int) string {
	if text == "" {
		return ""
	}

	start := strings.LastIndex(text[:pos], "\n") + 1
	end := len(text)
	if i := strings.IndexAny(text[pos:], "\r\n"); i >= 0 {
		end = pos + i
	}

	line := strings.TrimSpace(text[start:end])
	if len(line) <= excerptLimit {
		return line
	}

	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + "..."
}
