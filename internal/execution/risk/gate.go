// Package risk implements the pre-trade risk gate: a fixed pipeline of
// independent checks evaluated against a snapshot of account state,
// short-circuiting on the first rejection. The gate is deterministic and
// side-effect free; any internal failure rejects the order (fail closed).
package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution/metrics"
	"github.com/bisttrading/platform/internal/execution/model"
	"github.com/bisttrading/platform/internal/infrastructure/config"
)

// Risk levels attached to decisions.
const (
	LevelLow    = "LOW"
	LevelMedium = "MEDIUM"
	LevelHigh   = "HIGH"
)

// Decision is the outcome of evaluating one request. Reason is set iff the
// request was rejected.
type Decision struct {
	Approved bool
	Reason   string
	Level    string
}

func approved() Decision {
	return Decision{Approved: true, Level: LevelLow}
}

func rejected(reason string) Decision {
	return Decision{Approved: false, Reason: reason, Level: LevelHigh}
}

// Limits holds the configured ceilings for the gate's checks.
type Limits struct {
	MaxOrderValue      decimal.Decimal
	MaxPositionSize    decimal.Decimal
	MaxDailyLoss       decimal.Decimal
	MaxLeverage        decimal.Decimal
	ConcentrationLimit decimal.Decimal
}

// DefaultLimits mirrors the production defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxOrderValue:      decimal.NewFromInt(20000),
		MaxPositionSize:    decimal.NewFromInt(100000),
		MaxDailyLoss:       decimal.NewFromInt(50000),
		MaxLeverage:        decimal.NewFromFloat(3.0),
		ConcentrationLimit: decimal.NewFromFloat(0.1),
	}
}

// LimitsFromConfig converts the configured float limits to decimals.
func LimitsFromConfig(cfg config.RiskConfig) Limits {
	return Limits{
		MaxOrderValue:      decimal.NewFromFloat(cfg.MaxOrderValue),
		MaxPositionSize:    decimal.NewFromFloat(cfg.MaxPositionSize),
		MaxDailyLoss:       decimal.NewFromFloat(cfg.MaxDailyLoss),
		MaxLeverage:        decimal.NewFromFloat(cfg.MaxLeverage),
		ConcentrationLimit: decimal.NewFromFloat(cfg.ConcentrationLimit),
	}
}

type check struct {
	name string
	fn   func(req *model.OrderRequest, snap AccountSnapshot) Decision
}

// Gate evaluates order requests against the configured limits.
type Gate struct {
	limits   Limits
	provider AccountProvider
	logger   *zap.Logger
	checks   []check
}

// NewGate creates a gate with the full check pipeline in its fixed order.
func NewGate(limits Limits, provider AccountProvider, logger *zap.Logger) *Gate {
	g := &Gate{limits: limits, provider: provider, logger: logger}
	g.checks = []check{
		{"order_value", g.checkOrderValue},
		{"position_size", g.checkPositionSize},
		{"daily_loss", g.checkDailyLoss},
		{"concentration", g.checkConcentration},
		{"leverage", g.checkLeverage},
	}
	return g
}

// Evaluate runs the request through the pipeline. The first rejecting check
// wins; its reason is the one surfaced. A provider error or a panic inside a
// check rejects the request.
func (g *Gate) Evaluate(ctx context.Context, req *model.OrderRequest) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("risk evaluation panic",
				zap.String("client_order_id", req.ClientOrderID),
				zap.Any("panic", r))
			metrics.RiskRejections.WithLabelValues("internal_error").Inc()
			decision = rejected(fmt.Sprintf("risk validation error: %v", r))
		}
	}()

	if err := req.Validate(); err != nil {
		metrics.RiskRejections.WithLabelValues("validation").Inc()
		return rejected(err.Error())
	}

	snap, err := g.provider.Snapshot(ctx, req.AccountID, req.Symbol)
	if err != nil {
		g.logger.Error("risk snapshot unavailable",
			zap.String("account_id", req.AccountID),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		metrics.RiskRejections.WithLabelValues("snapshot_unavailable").Inc()
		return rejected(fmt.Sprintf("risk validation error: %s", err))
	}

	for _, c := range g.checks {
		if d := c.fn(req, snap); !d.Approved {
			g.logger.Debug("risk check rejected order",
				zap.String("client_order_id", req.ClientOrderID),
				zap.String("check", c.name),
				zap.String("reason", d.Reason))
			metrics.RiskRejections.WithLabelValues(c.name).Inc()
			return d
		}
	}

	g.logger.Debug("risk validation passed",
		zap.String("client_order_id", req.ClientOrderID))
	return approved()
}

// checkOrderValue enforces the per-order notional ceiling. Market orders
// carry no price and are exempt here.
func (g *Gate) checkOrderValue(req *model.OrderRequest, _ AccountSnapshot) Decision {
	value := req.Notional()
	if value.IsZero() {
		return approved()
	}
	if value.GreaterThan(g.limits.MaxOrderValue) {
		return rejected(fmt.Sprintf("order value %s exceeds maximum allowed %s",
			value, g.limits.MaxOrderValue))
	}
	return approved()
}

// checkPositionSize enforces the absolute position value ceiling after the
// order's directional contribution.
func (g *Gate) checkPositionSize(req *model.OrderRequest, snap AccountSnapshot) Decision {
	value := req.Notional()
	if value.IsZero() {
		return approved()
	}
	newPosition := snap.PositionValue
	if req.Side == model.OrderSideBuy {
		newPosition = newPosition.Add(value)
	} else {
		newPosition = newPosition.Sub(value)
	}
	if newPosition.Abs().GreaterThan(g.limits.MaxPositionSize) {
		return rejected(fmt.Sprintf("position size %s would exceed maximum %s",
			newPosition.Abs(), g.limits.MaxPositionSize))
	}
	return approved()
}

// checkDailyLoss bounds the worst-case loss of stop orders against the
// remaining daily loss budget.
func (g *Gate) checkDailyLoss(req *model.OrderRequest, snap AccountSnapshot) Decision {
	if req.StopPrice.IsZero() || req.Price.IsZero() {
		return approved()
	}
	potential := req.Price.Sub(req.StopPrice).Abs().Mul(decimal.NewFromInt(req.Quantity))
	total := snap.DailyRealizedLoss.Add(potential)
	if total.GreaterThan(g.limits.MaxDailyLoss) {
		return rejected(fmt.Sprintf("potential daily loss %s would exceed limit %s",
			total, g.limits.MaxDailyLoss))
	}
	return approved()
}

// checkConcentration bounds the symbol's share of the portfolio.
func (g *Gate) checkConcentration(req *model.OrderRequest, snap AccountSnapshot) Decision {
	value := req.Notional()
	if value.IsZero() || snap.PortfolioValue.IsZero() {
		return approved()
	}
	newSymbolValue := snap.SymbolValue
	if req.Side == model.OrderSideBuy {
		newSymbolValue = newSymbolValue.Add(value)
	} else {
		newSymbolValue = newSymbolValue.Sub(value)
	}
	concentration := newSymbolValue.Div(snap.PortfolioValue)
	if concentration.GreaterThan(g.limits.ConcentrationLimit) {
		hundred := decimal.NewFromInt(100)
		return rejected(fmt.Sprintf("symbol concentration %s%% would exceed limit %s%%",
			concentration.Mul(hundred).StringFixed(2),
			g.limits.ConcentrationLimit.Mul(hundred).StringFixed(2)))
	}
	return approved()
}

// checkLeverage applies only to margin and short-sale orders.
func (g *Gate) checkLeverage(req *model.OrderRequest, snap AccountSnapshot) Decision {
	if !req.MarginBuy && !req.ShortSale {
		return approved()
	}
	if snap.CurrentLeverage.GreaterThan(g.limits.MaxLeverage) {
		return rejected(fmt.Sprintf("current leverage %s exceeds maximum %s",
			snap.CurrentLeverage.StringFixed(2), g.limits.MaxLeverage.StringFixed(2)))
	}
	return approved()
}
