package vulndb

import (
	"fmt"
	"regexp"
	"strings"

	"TanZhen/internal/utils"
)

var termRe = regexp.MustCompile(`^(>=|<=|!=|==|=|>|<)?\s*v?(\d+(?:\.\d+)*)$`)

type versionTerm struct {
	op      string
	version string
}

// Predicate 逗号分隔的版本条件，全部满足才成立，例如 ">=2.4.0, <2.4.50"
type Predicate struct {
	expr  string
	terms []versionTerm
}

// ParsePredicate 解析版本条件，未写运算符时视为 "="
func ParsePredicate(expr string) (Predicate, error) {
	p := Predicate{expr: strings.TrimSpace(expr)}
	if p.expr == "" {
		return p, fmt.Errorf("版本条件为空")
	}

	for _, raw := range strings.Split(p.expr, ",") {
		raw = strings.TrimSpace(raw)
		m := termRe.FindStringSubmatch(raw)
		if m == nil {
			return Predicate{}, fmt.Errorf("无法解析的版本条件: %q", raw)
		}
		op := m[1]
		if op == "" || op == "==" {
			op = "="
		}
		p.terms = append(p.terms, versionTerm{op: op, version: m[2]})
	}

	return p, nil
}

// Satisfied 版本号为空时不成立
func (p Predicate) Satisfied(version string) bool {
	if version == "" || len(p.terms) == 0 {
		return false
	}

	vp := utils.NewVersionParser()
	version = vp.NormalizeVersion(version)

	for _, t := range p.terms {
		cmp := vp.CompareVersions(version, t.version)
		var ok bool
		switch t.op {
		case "=":
			ok = cmp == 0
		case "!=":
			ok = cmp != 0
		case ">":
			ok = cmp > 0
		case ">=":
			ok = cmp >= 0
		case "<":
			ok = cmp < 0
		case "<=":
			ok = cmp <= 0
		}
		if !ok {
			return false
		}
	}

	return true
}

func (p Predicate) String() string {
	return p.expr
}
