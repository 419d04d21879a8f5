package trader

import (
	"fmt"
	"math/big"

	"signal-relay-go/internal/exchange"

	"github.com/shopspring/decimal"
)

// sellProceeds is the USDT received for a market sell: the sum of the fills,
// else the average fill price times qty, else qty at the last known price.
func sellProceeds(order *exchange.Order, qty, lastPrice decimal.Decimal) decimal.Decimal {
	if order != nil && len(order.Fills) > 0 {
		total := decimal.Zero
		for _, f := range order.Fills {
			total = total.Add(f.Price.Mul(f.Quantity))
		}
		return total
	}
	if order != nil {
		if avg := order.AveragePrice(); avg.IsPositive() {
			return avg.Mul(qty)
		}
	}
	return qty.Mul(lastPrice)
}

// toBaseUnits converts a whole-token amount to integer base units, truncating.
func toBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	units := amount.Shift(int32(decimals)).Truncate(0).BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows base units", amount)
	}
	return units.Uint64(), nil
}

// fromBaseUnits converts integer base units to whole tokens.
func fromBaseUnits(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals))
}
