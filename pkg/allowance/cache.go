// Package allowance memoizes ERC-20 spending authorizations per
// (chain, owner, spender, asset). Entries never expire; callers force a
// refresh when they know the value changed.
package allowance

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/telemetry"
	"vault-solver/pkg/types"
)

// Cache holds allowance records for one owning solver
type Cache struct {
	reader  chain.Reader
	logger  *zap.Logger
	metrics *telemetry.Metrics

	mu      sync.Mutex
	records map[types.AllowanceKey]types.AllowanceRecord
	group   singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithMetrics sets the telemetry sink
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// NewCache creates an empty cache reading through reader
func NewCache(reader chain.Reader, opts ...Option) *Cache {
	c := &Cache{
		reader:  reader,
		logger:  zap.NewNop(),
		records: make(map[types.AllowanceKey]types.AllowanceRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Unlimited returns a record for keys that need no authorization
func Unlimited(key types.AllowanceKey, decimals uint8) types.AllowanceRecord {
	return types.AllowanceRecord{Key: key, Amount: types.NewAmount(math.MaxBig256, decimals)}
}

// Zero returns an empty record for key
func Zero(key types.AllowanceKey, decimals uint8) types.AllowanceRecord {
	return types.AllowanceRecord{Key: key, Amount: types.ZeroAmount(decimals)}
}

// Get returns the cached record for key, reading it from the chain when it
// is missing or when force is set. A failed read yields a zero record and the
// error; failures are not cached.
func (c *Cache) Get(ctx context.Context, key types.AllowanceKey, decimals uint8, force bool) (types.AllowanceRecord, error) {
	// the native coin and self-spending never need an approval
	if key.Asset == types.NativeAddress || key.Owner == key.Spender {
		return Unlimited(key, decimals), nil
	}

	if !force {
		c.mu.Lock()
		record, ok := c.records[key]
		c.mu.Unlock()
		if ok {
			return record, nil
		}
	}

	flightKey := fmt.Sprintf("%d/%s/%s/%s/%t", key.ChainID, key.Owner.Hex(), key.Spender.Hex(), key.Asset.Hex(), force)
	value, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		return c.read(ctx, key, decimals)
	})
	if err != nil {
		c.metrics.RecordRead("allowance", telemetry.OutcomeFailed)
		c.logger.Warn("allowance read failed",
			zap.Uint64("chain_id", key.ChainID),
			zap.String("owner", key.Owner.Hex()),
			zap.String("spender", key.Spender.Hex()),
			zap.String("asset", key.Asset.Hex()),
			zap.Error(err))
		return Zero(key, decimals), err
	}

	c.metrics.RecordRead("allowance", telemetry.OutcomeOK)
	return value.(types.AllowanceRecord), nil
}

func (c *Cache) read(ctx context.Context, key types.AllowanceKey, decimals uint8) (types.AllowanceRecord, error) {
	amount, err := chain.ReadBig(ctx, c.reader, chain.Call{
		ChainID: key.ChainID,
		To:      key.Asset,
		ABI:     chain.ERC20ABI,
		Method:  "allowance",
		Args:    []interface{}{key.Owner, key.Spender},
	})
	if err != nil {
		return types.AllowanceRecord{}, err
	}

	record := types.AllowanceRecord{Key: key, Amount: types.NewAmount(amount, decimals)}

	c.mu.Lock()
	c.records[key] = record
	c.mu.Unlock()

	return record, nil
}

// Invalidate drops the record for key. The next Get reads the chain.
func (c *Cache) Invalidate(key types.AllowanceKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, key)
}
