package risk

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Redis key layout written by the portfolio synchronization job:
//
//	risk:account:{accountID}        hash: portfolio_value, leverage, daily_loss
//	risk:position:{accountID}:{sym} hash: value, symbol_value
//
// Missing keys and fields read as zero; the gate tolerates approximation.
type RedisProvider struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisProvider creates a provider backed by the shared redis instance.
func NewRedisProvider(client *redis.Client, logger *zap.Logger) *RedisProvider {
	return &RedisProvider{client: client, logger: logger}
}

func (p *RedisProvider) Snapshot(ctx context.Context, accountID, symbol string) (AccountSnapshot, error) {
	var snap AccountSnapshot

	account, err := p.client.HGetAll(ctx, fmt.Sprintf("risk:account:%s", accountID)).Result()
	if err != nil {
		return snap, fmt.Errorf("load account risk state: %w", err)
	}
	snap.PortfolioValue = p.field(account, "portfolio_value")
	snap.CurrentLeverage = p.field(account, "leverage")
	snap.DailyRealizedLoss = p.field(account, "daily_loss")

	position, err := p.client.HGetAll(ctx, fmt.Sprintf("risk:position:%s:%s", accountID, symbol)).Result()
	if err != nil {
		return snap, fmt.Errorf("load position risk state: %w", err)
	}
	snap.PositionValue = p.field(position, "value")
	snap.SymbolValue = p.field(position, "symbol_value")

	return snap, nil
}

func (p *RedisProvider) field(h map[string]string, name string) decimal.Decimal {
	raw, ok := h[name]
	if !ok || raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.logger.Warn("unparseable risk field, treating as zero",
			zap.String("field", name), zap.String("value", raw))
		return decimal.Zero
	}
	return d
}
