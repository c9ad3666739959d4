package resolver

import (
	"strings"

	"github.com/bobmcallan/holdwise/internal/models"
	"github.com/bobmcallan/holdwise/internal/refdata"
)

// BatchContext carries everything the network-backed stages learned while
// preparing a batch of holdings. Stages only read from it.
type BatchContext struct {
	External map[string]string // CUSIP -> ticker from the batched resolver
	Names    *NameIndex
}

// Stage is one step of the resolution chain. Resolve must be pure: all I/O
// happens before the chain runs.
type Stage struct {
	Method  models.ResolutionMethod
	Resolve func(raw models.RawHolding, bc *BatchContext) (string, bool)
}

// Chain is a prioritised list of stages followed by alias correction.
type Chain struct {
	Stages  []Stage
	Aliases func(ticker string) (string, bool)
}

// DefaultChain returns the standard order: inline ticker, static table,
// batched external lookup, then name index.
func DefaultChain(tables *refdata.Tables) Chain {
	return Chain{
		Stages: []Stage{
			InlineStage(),
			StaticStage(tables),
			ExternalStage(),
			NameStage(),
		},
		Aliases: tables.Alias,
	}
}

// Resolve runs the stages in order and stops at the first ticker. Alias
// correction is applied whichever stage succeeded. A holding no stage can
// resolve keeps an empty ticker and is never dropped.
func (c Chain) Resolve(raw models.RawHolding, bc *BatchContext) models.ResolvedHolding {
	out := models.ResolvedHolding{RawHolding: raw, Method: models.ResolvedUnresolved}
	for _, stage := range c.Stages {
		ticker, ok := stage.Resolve(raw, bc)
		if !ok {
			continue
		}
		if ticker = models.NormalizeTicker(ticker); ticker == "" {
			continue
		}
		out.Ticker = ticker
		out.Method = stage.Method
		break
	}
	if out.Ticker != "" && c.Aliases != nil {
		if to, ok := c.Aliases(out.Ticker); ok {
			out.Ticker = to
			out.Aliased = true
		}
	}
	return out
}

// InlineStage uses the ticker carried on the filing line.
func InlineStage() Stage {
	return Stage{
		Method: models.ResolvedInline,
		Resolve: func(raw models.RawHolding, _ *BatchContext) (string, bool) {
			t := models.NormalizeTicker(raw.Ticker)
			return t, t != ""
		},
	}
}

// StaticStage looks the CUSIP up in the embedded table.
func StaticStage(tables *refdata.Tables) Stage {
	return Stage{
		Method: models.ResolvedStatic,
		Resolve: func(raw models.RawHolding, _ *BatchContext) (string, bool) {
			return tables.TickerForCUSIP(normalizeCUSIP(raw.CUSIP))
		},
	}
}

// ExternalStage reads the batched external lookup results.
func ExternalStage() Stage {
	return Stage{
		Method: models.ResolvedExternal,
		Resolve: func(raw models.RawHolding, bc *BatchContext) (string, bool) {
			if bc == nil {
				return "", false
			}
			t, ok := bc.External[normalizeCUSIP(raw.CUSIP)]
			return t, ok && t != ""
		},
	}
}

// NameStage matches the issuer name against the company index.
func NameStage() Stage {
	return Stage{
		Method: models.ResolvedName,
		Resolve: func(raw models.RawHolding, bc *BatchContext) (string, bool) {
			if bc == nil {
				return "", false
			}
			return bc.Names.Lookup(raw.Name)
		},
	}
}

func normalizeCUSIP(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// validCUSIP reports whether s has the 9-character CUSIP shape.
func validCUSIP(s string) bool {
	if len(s) != 9 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || r == '*' || r == '@' || r == '#') {
			return false
		}
	}
	return true
}
