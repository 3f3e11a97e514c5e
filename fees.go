package chainstamp

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeModel computes stamping fees as price × size in integer arithmetic.
// Every estimate awaits a fresh price through the degraded-mode controller,
// there is no caching across calls, so quotes never go stale.
type FeeModel struct {
	source *DegradedModeController
}

// NewFeeModel creates a fee model over the given price source.
func NewFeeModel(source *DegradedModeController) *FeeModel {
	return &FeeModel{source: source}
}

// PricePerByte retrieves the current price per byte.
func (f *FeeModel) PricePerByte(ctx context.Context, caller common.Address) (*big.Int, error) {
	return f.source.QueryPricePerByte(ctx, caller)
}

// EstimateFee returns price × size for the given declared size.
func (f *FeeModel) EstimateFee(ctx context.Context, caller common.Address, size uint64) (*big.Int, error) {
	price, err := f.PricePerByte(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("couldn't retrieve price per byte: %w", err)
	}
	return ComputeFee(price, new(big.Int).SetUint64(size)), nil
}

// ComputeFee multiplies price by size with no loss of precision and no
// rounding, for arbitrarily large operands.
func ComputeFee(price, size *big.Int) *big.Int {
	if price == nil || size == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(price, size)
}
