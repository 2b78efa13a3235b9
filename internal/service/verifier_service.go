package service

import (
	"fmt"
	"sort"
	"strings"

	"vending-gateway/config"
	"vending-gateway/internal/core/domain"
	"vending-gateway/pkg/apperror"
)

// tierRank breaks price ties so that team >= plus >= free.
var tierRank = map[domain.Plan]int{
	domain.PlanTeam: 3,
	domain.PlanPlus: 2,
	domain.PlanFree: 1,
}

type priceTier struct {
	plan  domain.Plan
	price int64
}

// VerifierService implements ports.PaymentVerifier. It holds no mutable
// state and is safe for concurrent use.
type VerifierService struct {
	grammar          *memoGrammar
	required         []string
	excluded         []string
	minAmount        int64
	tiers            []priceTier // highest first
	prices           map[domain.Plan]int64
	enforcePlanPrice bool
}

// NewVerifierService builds a verifier from the payment policy.
func NewVerifierService(cfg config.PaymentConfig) (*VerifierService, error) {
	grammar, err := newMemoGrammar(cfg.CodePrefixes)
	if err != nil {
		return nil, err
	}

	prices := make(map[domain.Plan]int64, len(cfg.PriceList))
	tiers := make([]priceTier, 0, len(cfg.PriceList))
	for name, price := range cfg.PriceList {
		plan := domain.Plan(strings.ToLower(name))
		if !plan.IsSellable() {
			return nil, fmt.Errorf("price list has unknown plan %q", name)
		}
		prices[plan] = price
		tiers = append(tiers, priceTier{plan: plan, price: price})
	}
	sort.Slice(tiers, func(i, j int) bool {
		if tiers[i].price != tiers[j].price {
			return tiers[i].price > tiers[j].price
		}
		return tierRank[tiers[i].plan] > tierRank[tiers[j].plan]
	})

	return &VerifierService{
		grammar:          grammar,
		required:         upperAll(cfg.RequiredKeywords),
		excluded:         upperAll(cfg.ExcludedKeywords),
		minAmount:        cfg.MinAmount,
		tiers:            tiers,
		prices:           prices,
		enforcePlanPrice: cfg.EnforcePlanPrice,
	}, nil
}

// Verify checks memo and amount against the policy.
func (s *VerifierService) Verify(memo string, amount int64) domain.VerificationResult {
	normalized := normalizeMemo(memo)
	res := domain.VerificationResult{Valid: true, Amount: amount, Reasons: []string{}}
	fail := func(reason string) {
		res.Valid = false
		res.Reasons = append(res.Reasons, reason)
	}
	pass := func(reason string) {
		res.Reasons = append(res.Reasons, "ok: "+reason)
	}

	codePath := false
	if code, plan, ok := s.grammar.parse(normalized); ok {
		codePath = true
		digits := code.Digits
		res.Code = code
		res.Plan = plan
		res.OwnerRef = &digits
		pass(fmt.Sprintf("code %s selects plan %s", code.String(), plan))
	} else {
		res.Plan = s.inferPlan(amount)
		pass(fmt.Sprintf("no code in memo, amount %d infers plan %s", amount, res.Plan))
	}

	if amount < s.minAmount {
		fail(fmt.Sprintf("amount %d is below minimum %d", amount, s.minAmount))
	} else {
		pass(fmt.Sprintf("amount %d meets minimum %d", amount, s.minAmount))
	}

	if res.Plan != domain.PlanDeposit && len(s.required) > 0 {
		found := ""
		for _, k := range s.required {
			if strings.Contains(normalized, k) {
				found = k
				break
			}
		}
		if found == "" {
			fail("missing required keyword: " + strings.Join(s.required, ", "))
		} else {
			pass("required keyword " + found + " present")
		}
	}

	if len(s.excluded) > 0 {
		words := make(map[string]struct{})
		for _, w := range memoWords(normalized) {
			words[w] = struct{}{}
		}
		var hits []string
		for _, k := range s.excluded {
			if _, ok := words[k]; ok {
				hits = append(hits, k)
			}
		}
		if len(hits) > 0 {
			fail("excluded keyword: " + strings.Join(hits, ", "))
		} else {
			pass("no excluded keyword")
		}
	}

	if s.enforcePlanPrice && codePath && res.Plan.IsSellable() {
		if price, ok := s.prices[res.Plan]; ok && amount < price {
			fail(fmt.Sprintf("amount %d is below %s price %d", amount, res.Plan, price))
		}
	}

	if res.Plan == domain.PlanUnknown {
		fail("no plan matches the amount")
	}

	return res
}

// inferPlan picks the highest tier whose price does not exceed amount.
func (s *VerifierService) inferPlan(amount int64) domain.Plan {
	for _, t := range s.tiers {
		if t.price <= amount {
			return t.plan
		}
	}
	return domain.PlanUnknown
}

// Price returns the configured price of a sellable plan.
func (s *VerifierService) Price(plan domain.Plan) (int64, bool) {
	p, ok := s.prices[plan]
	return p, ok
}

// CodeFor builds the memo code an owner should put in the transfer for plan.
func (s *VerifierService) CodeFor(plan domain.Plan, ownerID string) (string, error) {
	if ownerID == "" || !isDigits(ownerID) {
		return "", apperror.Validation("owner_id must be numeric to build a payment code")
	}
	prefix, ok := s.grammar.prefixFor(plan)
	if !ok {
		return "", apperror.Validation(fmt.Sprintf("no payment code prefix configured for plan %s", plan))
	}
	return domain.PaymentCode{Prefix: prefix, Digits: ownerID}.String(), nil
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
