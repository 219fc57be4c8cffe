// Package pricing estimates session cost from token counters.
//
// Prices are per million tokens and kept in decimal arithmetic end to end;
// money never touches binary floating point.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/grovetools/lookout/pkg/models"
)

// Tier is one pricing tier with four independent per-million-token rates.
type Tier struct {
	Name          string
	Input         decimal.Decimal
	Output        decimal.Decimal
	CacheRead     decimal.Decimal
	CacheCreation decimal.Decimal
}

// Breakdown is the cost of one session split by token kind.
type Breakdown struct {
	Tier          string
	Input         decimal.Decimal
	Output        decimal.Decimal
	CacheRead     decimal.Decimal
	CacheCreation decimal.Decimal
	Total         decimal.Decimal
}

var (
	opusTier = Tier{
		Name:          "opus",
		Input:         decimal.NewFromInt(15),
		Output:        decimal.NewFromInt(75),
		CacheRead:     decimal.RequireFromString("1.5"),
		CacheCreation: decimal.RequireFromString("18.75"),
	}
	sonnetTier = Tier{
		Name:          "sonnet",
		Input:         decimal.NewFromInt(3),
		Output:        decimal.NewFromInt(15),
		CacheRead:     decimal.RequireFromString("0.3"),
		CacheCreation: decimal.RequireFromString("3.75"),
	}
	haikuTier = Tier{
		Name:          "haiku",
		Input:         decimal.RequireFromString("0.8"),
		Output:        decimal.NewFromInt(4),
		CacheRead:     decimal.RequireFromString("0.08"),
		CacheCreation: decimal.NewFromInt(1),
	}
)

var million = decimal.NewFromInt(1_000_000)

// TierFor matches a model name to a pricing tier, case-insensitively by
// substring. Unknown models price at the highest tier: overestimating beats
// silently undercounting.
func TierFor(model string) Tier {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "sonnet"):
		return sonnetTier
	case strings.Contains(m, "haiku"):
		return haikuTier
	default:
		return opusTier
	}
}

// Cost computes the cost breakdown for a model and its token counters.
func Cost(model string, usage models.TokenUsage) Breakdown {
	tier := TierFor(model)

	b := Breakdown{
		Tier:          tier.Name,
		Input:         perMillion(usage.InputTokens, tier.Input),
		Output:        perMillion(usage.OutputTokens, tier.Output),
		CacheRead:     perMillion(usage.CacheReadTokens, tier.CacheRead),
		CacheCreation: perMillion(usage.CacheCreationTokens, tier.CacheCreation),
	}
	b.Total = b.Input.Add(b.Output).Add(b.CacheRead).Add(b.CacheCreation)
	return b
}

func perMillion(tokens int, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(tokens)).Mul(rate).Div(million)
}
