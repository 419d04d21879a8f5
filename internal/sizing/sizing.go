// Package sizing decides how much USDT a buy signal spends.
package sizing

import (
	"context"
	"fmt"

	"signal-relay-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// FeeRate is the discounted taker fee paid in the fee asset.
	FeeRate = decimal.RequireFromString("0.00075")
	// FeeHaircut scales the order down when the fee must come out of the quote asset.
	FeeHaircut = decimal.RequireFromString("0.999")
)

// FloorCents truncates d toward negative infinity at two decimal places.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(2)
}

// Candidate picks the stored allocation when it is set and smaller than the default.
// A zero allocation counts as unset.
func Candidate(defaultAmount decimal.Decimal, stored *decimal.Decimal) decimal.Decimal {
	if stored != nil && !stored.IsZero() && stored.LessThan(defaultAmount) {
		return *stored
	}
	return defaultAmount
}

// Resolve returns the order size for a buy given the free quote balance, the
// optional stored allocation and the balance of the fee asset.
func Resolve(defaultAmount decimal.Decimal, stored *decimal.Decimal, feeCoverage decimal.Decimal) decimal.Decimal {
	candidate := Candidate(defaultAmount, stored)
	threshold := candidate.Mul(FeeRate)
	if feeCoverage.GreaterThan(threshold) {
		return FloorCents(candidate)
	}
	return FloorCents(candidate.Mul(FeeHaircut))
}

// Fallback is the size used when the allocation or fee lookups fail.
func Fallback(defaultAmount decimal.Decimal) decimal.Decimal {
	return FloorCents(defaultAmount.Mul(FeeHaircut))
}

// AllocationReader is the slice of the store the resolver needs.
type AllocationReader interface {
	GetAllocation(ctx context.Context, name string) (*models.AllocationRecord, error)
}

// FeeCoverageFunc returns the free balance of the fee asset.
type FeeCoverageFunc func(ctx context.Context) (decimal.Decimal, error)

// Resolver looks up the inputs of Resolve and degrades to Fallback on any failure.
type Resolver struct {
	allocations AllocationReader
	logger      *zap.Logger
}

// NewResolver creates a Resolver backed by the given allocation store.
func NewResolver(allocations AllocationReader, logger *zap.Logger) *Resolver {
	return &Resolver{allocations: allocations, logger: logger}
}

// Size never fails. Lookup errors are logged and the fallback size is returned.
func (r *Resolver) Size(ctx context.Context, name string, defaultAmount decimal.Decimal, feeCoverage FeeCoverageFunc) decimal.Decimal {
	l := r.logger.With(zap.String("name", name), zap.Stringer("default_amount", defaultAmount))

	stored, err := r.storedAllocation(ctx, name)
	if err != nil {
		l.Warn("Allocation lookup failed, using fallback size", zap.Error(err))
		return Fallback(defaultAmount)
	}

	coverage, err := feeCoverage(ctx)
	if err != nil {
		l.Warn("Fee coverage lookup failed, using fallback size", zap.Error(err))
		return Fallback(defaultAmount)
	}

	size := Resolve(defaultAmount, stored, coverage)
	l.Debug("Resolved order size",
		zap.Stringer("fee_coverage", coverage),
		zap.Stringer("size", size),
	)
	return size
}

func (r *Resolver) storedAllocation(ctx context.Context, name string) (*decimal.Decimal, error) {
	if r.allocations == nil {
		return nil, nil
	}
	rec, err := r.allocations.GetAllocation(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get allocation %s: %w", name, err)
	}
	if rec == nil {
		return nil, nil
	}
	amount := rec.UsdtAmount.Decimal
	return &amount, nil
}
