package sizing

import (
	"context"
	"errors"
	"testing"

	"signal-relay-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		name        string
		def         string
		stored      *decimal.Decimal
		feeCoverage string
		expected    string
	}{
		{name: "no allocation, fee covered", def: "1000", stored: nil, feeCoverage: "1", expected: "1000"},
		{name: "no allocation, fee not covered", def: "1000", stored: nil, feeCoverage: "0.5", expected: "999"},
		{name: "threshold is exclusive", def: "1000", stored: nil, feeCoverage: "0.75", expected: "999"},
		{name: "smaller allocation wins", def: "1000", stored: ptr("250"), feeCoverage: "1", expected: "250"},
		{name: "larger allocation ignored", def: "100", stored: ptr("250"), feeCoverage: "1", expected: "100"},
		{name: "equal allocation ignored", def: "100", stored: ptr("100"), feeCoverage: "1", expected: "100"},
		{name: "zero allocation is absent", def: "100", stored: ptr("0"), feeCoverage: "1", expected: "100"},
		{name: "haircut then floor", def: "123.456", stored: nil, feeCoverage: "0", expected: "123.33"},
		{name: "covered result floored", def: "10.019", stored: nil, feeCoverage: "1", expected: "10.01"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(d(tc.def), tc.stored, d(tc.feeCoverage))
			assert.True(t, got.Equal(d(tc.expected)), "expected %s, got %s", tc.expected, got)
		})
	}
}

func TestResolve_NeverExceedsDefaultOrAllocation(t *testing.T) {
	defaults := []string{"0.01", "5", "99.99", "1000", "12345.678"}
	stored := []*decimal.Decimal{nil, ptr("0"), ptr("1"), ptr("50.5"), ptr("20000")}
	coverage := []string{"0", "0.001", "100"}

	for _, def := range defaults {
		for _, s := range stored {
			for _, c := range coverage {
				got := Resolve(d(def), s, d(c))
				assert.True(t, got.LessThanOrEqual(d(def)))
				if s != nil && !s.IsZero() {
					assert.True(t, got.LessThanOrEqual(*s))
				}
				assert.True(t, got.Equal(got.Truncate(2)), "%s has more than two decimals", got)
			}
		}
	}
}

func TestFallbackAndFloor(t *testing.T) {
	assert.True(t, Fallback(d("1000")).Equal(d("999")))
	assert.True(t, Fallback(d("10.05")).Equal(d("10.03")))
	assert.True(t, FloorCents(d("1.999")).Equal(d("1.99")))
	assert.True(t, FloorCents(d("-1.001")).Equal(d("-1.01")))
}

type mockAllocations struct {
	mock.Mock
}

func (m *mockAllocations) GetAllocation(ctx context.Context, name string) (*models.AllocationRecord, error) {
	args := m.Called(ctx, name)
	rec, _ := args.Get(0).(*models.AllocationRecord)
	return rec, args.Error(1)
}

func fixedCoverage(v string) FeeCoverageFunc {
	return func(context.Context) (decimal.Decimal, error) { return d(v), nil }
}

func TestResolver_Size(t *testing.T) {
	ctx := context.Background()

	t.Run("uses stored allocation", func(t *testing.T) {
		allocs := new(mockAllocations)
		allocs.On("GetAllocation", ctx, "AAAA").Return(&models.AllocationRecord{Name: "AAAA", UsdtAmount: models.NewAmount(d("300"))}, nil)

		r := NewResolver(allocs, zap.NewNop())
		got := r.Size(ctx, "AAAA", d("1000"), fixedCoverage("5"))

		assert.True(t, got.Equal(d("300")), "got %s", got)
		allocs.AssertExpectations(t)
	})

	t.Run("absent allocation", func(t *testing.T) {
		allocs := new(mockAllocations)
		allocs.On("GetAllocation", ctx, "AAAA").Return(nil, nil)

		r := NewResolver(allocs, zap.NewNop())
		got := r.Size(ctx, "AAAA", d("1000"), fixedCoverage("5"))

		assert.True(t, got.Equal(d("1000")), "got %s", got)
	})

	t.Run("allocation lookup failure falls back", func(t *testing.T) {
		allocs := new(mockAllocations)
		allocs.On("GetAllocation", ctx, "AAAA").Return(nil, errors.New("db down"))

		r := NewResolver(allocs, zap.NewNop())
		got := r.Size(ctx, "AAAA", d("1000"), fixedCoverage("5"))

		assert.True(t, got.Equal(d("999")), "got %s", got)
	})

	t.Run("fee coverage failure falls back", func(t *testing.T) {
		allocs := new(mockAllocations)
		allocs.On("GetAllocation", ctx, "AAAA").Return(&models.AllocationRecord{Name: "AAAA", UsdtAmount: models.NewAmount(d("300"))}, nil)

		r := NewResolver(allocs, zap.NewNop())
		got := r.Size(ctx, "AAAA", d("1000"), func(context.Context) (decimal.Decimal, error) {
			return decimal.Zero, errors.New("balance unavailable")
		})

		assert.True(t, got.Equal(d("999")), "got %s", got)
	})
}
