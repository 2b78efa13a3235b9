package service

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"vending-gateway/internal/core/domain"
)

// codeRule maps one memo prefix to a plan.
type codeRule struct {
	prefix string
	plan   domain.Plan
}

// memoGrammar recognises PREFIX+digits codes in transfer memos.
// Rules are ordered longest prefix first.
type memoGrammar struct {
	rules []codeRule
}

func newMemoGrammar(table map[string]string) (*memoGrammar, error) {
	rules := make([]codeRule, 0, len(table))
	for prefix, plan := range table {
		p := domain.Plan(strings.ToLower(strings.TrimSpace(plan)))
		if p != domain.PlanDeposit && !p.IsSellable() {
			return nil, fmt.Errorf("code prefix %q maps to unknown plan %q", prefix, plan)
		}
		prefix = strings.ToUpper(strings.TrimSpace(prefix))
		if prefix == "" || !isAlpha(prefix) {
			return nil, fmt.Errorf("code prefix %q must be letters only", prefix)
		}
		rules = append(rules, codeRule{prefix: prefix, plan: p})
	}
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].prefix) != len(rules[j].prefix) {
			return len(rules[i].prefix) > len(rules[j].prefix)
		}
		return rules[i].prefix < rules[j].prefix
	})
	return &memoGrammar{rules: rules}, nil
}

// parse returns the first code token in a normalized memo.
func (g *memoGrammar) parse(memo string) (*domain.PaymentCode, domain.Plan, bool) {
	for _, tok := range memoTokens(memo) {
		for _, r := range g.rules {
			if !strings.HasPrefix(tok, r.prefix) {
				continue
			}
			digits := tok[len(r.prefix):]
			if digits == "" || !isDigits(digits) {
				continue
			}
			return &domain.PaymentCode{Prefix: r.prefix, Digits: digits}, r.plan, true
		}
	}
	return nil, "", false
}

// prefixFor returns the prefix buyers should use for plan.
func (g *memoGrammar) prefixFor(plan domain.Plan) (string, bool) {
	var best string
	for _, r := range g.rules {
		if r.plan != plan {
			continue
		}
		if best == "" || r.prefix < best {
			best = r.prefix
		}
	}
	return best, best != ""
}

func normalizeMemo(memo string) string {
	return strings.ToUpper(strings.TrimSpace(memo))
}

// memoTokens splits on every rune that is not a letter or digit, so bank
// prefixes like "MBVCB.1234.PLUS99" still expose the code.
func memoTokens(memo string) []string {
	return strings.FieldsFunc(memo, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// memoWords splits on whitespace only; used for whole-word exclusion.
func memoWords(memo string) []string {
	return strings.Fields(memo)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
