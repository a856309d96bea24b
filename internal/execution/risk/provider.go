package risk

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountSnapshot is the view of account state the gate evaluates against.
// Figures may be approximations; the gate only requires their presence.
type AccountSnapshot struct {
	// PositionValue is the signed value of the current position in the
	// order's symbol (positive long, negative short).
	PositionValue decimal.Decimal
	// SymbolValue is the absolute market value of the position in the
	// order's symbol, used for concentration.
	SymbolValue decimal.Decimal
	// PortfolioValue is the total account portfolio value.
	PortfolioValue decimal.Decimal
	// CurrentLeverage is the account's current leverage multiple.
	CurrentLeverage decimal.Decimal
	// DailyRealizedLoss is today's realized loss (positive number).
	DailyRealizedLoss decimal.Decimal
}

// AccountProvider supplies account state for risk evaluation. Implementations
// live outside the gate; the bundled ones are the redis-backed provider and
// the static provider used in tests.
type AccountProvider interface {
	Snapshot(ctx context.Context, accountID, symbol string) (AccountSnapshot, error)
}

// StaticProvider returns a fixed snapshot for every account. Used in tests
// and as a stand-in while the portfolio service is unavailable.
type StaticProvider struct {
	Account AccountSnapshot
}

func (p *StaticProvider) Snapshot(ctx context.Context, accountID, symbol string) (AccountSnapshot, error) {
	return p.Account, nil
}
