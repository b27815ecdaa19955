package vulndb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"TanZhen/internal/model"
)

// AnyService 匹配所有服务
const AnyService = "*"

// SignatureRecord 特征库的存储格式（JSON 文件与 SQLite 行共用）
type SignatureRecord struct {
	ID               string `json:"id"`
	AffectedService  string `json:"affected_service"`
	MatchPattern     string `json:"match_pattern,omitempty"`
	MatchRegex       string `json:"match_regex,omitempty"`
	Product          string `json:"product,omitempty"`
	VersionPredicate string `json:"version_predicate,omitempty"`
	Severity         string `json:"severity"`
	Description      string `json:"description"`
	Remediation      string `json:"remediation,omitempty"`
}

type compiledSignature struct {
	sig       model.VulnerabilitySignature
	services  []string
	pattern   *regexp.Regexp
	regex     *regexp.Regexp
	product   *regexp.Regexp
	predicate *Predicate
}

// Catalog 校验并编译后的特征库，加载后只读，可被多个匹配器并发共享
type Catalog struct {
	source     string
	signatures []compiledSignature
}

// NewCatalog 逐条校验，任一条目格式错误都返回 *model.CatalogError
func NewCatalog(source string, records []SignatureRecord) (*Catalog, error) {
	c := &Catalog{source: source}
	seen := make(map[string]bool, len(records))

	for i, rec := range records {
		cs, err := compileSignature(rec)
		if err != nil {
			return nil, &model.CatalogError{Source: source, Index: i, SignatureID: rec.ID, Reason: err.Error()}
		}
		if seen[cs.sig.ID] {
			return nil, &model.CatalogError{Source: source, Index: i, SignatureID: rec.ID, Reason: "规则ID重复"}
		}
		seen[cs.sig.ID] = true
		c.signatures = append(c.signatures, cs)
	}

	return c, nil
}

func compileSignature(rec SignatureRecord) (compiledSignature, error) {
	var cs compiledSignature

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return cs, fmt.Errorf("缺少规则ID")
	}

	service := strings.TrimSpace(rec.AffectedService)
	if service == "" {
		return cs, fmt.Errorf("缺少 affected_service")
	}
	for _, s := range strings.Split(service, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return cs, fmt.Errorf("affected_service 含空项: %q", rec.AffectedService)
		}
		cs.services = append(cs.services, s)
	}

	severity, err := model.ParseSeverity(rec.Severity)
	if err != nil {
		return cs, err
	}

	pattern := strings.TrimSpace(rec.MatchPattern)
	if rec.MatchPattern != "" && pattern == "" {
		return cs, fmt.Errorf("match_pattern 不能只包含空白")
	}
	if pattern != "" {
		cs.pattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(pattern))
	}

	if rec.MatchRegex != "" {
		re, err := regexp.Compile(`(?i)` + rec.MatchRegex)
		if err != nil {
			return cs, fmt.Errorf("正则表达式无效: %v", err)
		}
		cs.regex = re
	}

	if rec.VersionPredicate != "" {
		if strings.TrimSpace(rec.Product) == "" {
			return cs, fmt.Errorf("version_predicate 需要同时指定 product")
		}
		pred, err := ParsePredicate(rec.VersionPredicate)
		if err != nil {
			return cs, err
		}
		cs.predicate = &pred
		cs.product = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(strings.TrimSpace(rec.Product)))
	}

	cs.sig = model.VulnerabilitySignature{
		ID:              id,
		AffectedService: service,
		MatchPattern:    pattern,
		MatchRegex:      rec.MatchRegex,
		Product:         strings.TrimSpace(rec.Product),
		VersionPred:     rec.VersionPredicate,
		Severity:        severity,
		Description:     rec.Description,
		Remediation:     rec.Remediation,
	}

	return cs, nil
}

// ParseCatalog 从JSON数组读取特征库，未知字段视为格式错误
func ParseCatalog(source string, r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var records []SignatureRecord
	if err := dec.Decode(&records); err != nil {
		return nil, &model.CatalogError{Source: source, Index: -1, Reason: fmt.Sprintf("JSON 解析失败: %v", err)}
	}

	return NewCatalog(source, records)
}

// LoadCatalogFile 读取JSON特征库文件
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开特征库失败: %w", err)
	}
	defer f.Close()

	return ParseCatalog(path, f)
}

func (c *Catalog) Source() string {
	return c.source
}

func (c *Catalog) Len() int {
	return len(c.signatures)
}

// Signatures 按特征库顺序返回规则副本
func (c *Catalog) Signatures() []model.VulnerabilitySignature {
	out := make([]model.VulnerabilitySignature, len(c.signatures))
	for i, cs := range c.signatures {
		out[i] = cs.sig
	}
	return out
}

// Records 转回存储格式，用于写入SQLite
func (c *Catalog) Records() []SignatureRecord {
	out := make([]SignatureRecord, len(c.signatures))
	for i, cs := range c.signatures {
		out[i] = SignatureRecord{
			ID:               cs.sig.ID,
			AffectedService:  cs.sig.AffectedService,
			MatchPattern:     cs.sig.MatchPattern,
			MatchRegex:       cs.sig.MatchRegex,
			Product:          cs.sig.Product,
			VersionPredicate: cs.sig.VersionPred,
			Severity:         cs.sig.Severity.String(),
			Description:      cs.sig.Description,
			Remediation:      cs.sig.Remediation,
		}
	}
	return out
}
