package reserve

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/go-multierror"
)

// FullCollateral is a collateral ratio of 100% in basis points.
const FullCollateral uint64 = 10_000

// Report is the integrity view of a reserve.
type Report struct {
	Reserve            Reserve  `json:"reserve"`
	SupplyConsistent   bool     `json:"supply_consistent"`
	Parity             bool     `json:"parity"`
	CollateralRatioBps uint64   `json:"collateral_ratio_bps"`
	FullyBacked        bool     `json:"fully_backed"`
	TokenSupply        uint64   `json:"token_supply"`
	TokenSupplyMatches bool     `json:"token_supply_matches"`
	Problems           []string `json:"problems,omitempty"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return len(r.Problems) == 0
}

// Check evaluates the invariants of the reserve record alone. An empty reserve
// counts as fully collateralized. The token fields are filled by
// Ledger.Report, which can see the token side.
func Check(r Reserve) Report {
	rep := Report{Reserve: r}
	var errs error

	minted := new(big.Int).SetUint64(r.TotalMinted)
	burned := new(big.Int).SetUint64(r.TotalBurned)
	expected := new(big.Int).Sub(minted, burned)
	rep.SupplyConsistent = expected.Cmp(new(big.Int).SetUint64(r.TotalSupply)) == 0
	if !rep.SupplyConsistent {
		errs = multierror.Append(errs, fmt.Errorf("total supply %d differs from minted minus burned %s", r.TotalSupply, expected))
	}

	rep.Parity = r.BRLReserve == r.TotalSupply
	if !rep.Parity {
		errs = multierror.Append(errs, fmt.Errorf("brl reserve %d differs from total supply %d", r.BRLReserve, r.TotalSupply))
	}

	rep.CollateralRatioBps = collateralRatio(r.BRLReserve, r.TotalSupply)
	rep.FullyBacked = rep.CollateralRatioBps >= FullCollateral
	if !rep.FullyBacked {
		errs = multierror.Append(errs, fmt.Errorf("collateral ratio %d bps below %d", rep.CollateralRatioBps, FullCollateral))
	}

	if merr, ok := errs.(*multierror.Error); ok {
		for _, err := range merr.Errors {
			rep.Problems = append(rep.Problems, err.Error())
		}
	}
	return rep
}

// reconcile compares the supply recorded by the token service with the
// reserve's own total supply.
func (rep *Report) reconcile(supply uint64, err error) {
	if err != nil {
		rep.Problems = append(rep.Problems, fmt.Sprintf("token supply unavailable: %v", err))
		return
	}
	rep.TokenSupply = supply
	rep.TokenSupplyMatches = supply == rep.Reserve.TotalSupply
	if !rep.TokenSupplyMatches {
		rep.Problems = append(rep.Problems, fmt.Sprintf("token supply %d differs from total supply %d", supply, rep.Reserve.TotalSupply))
	}
}

func collateralRatio(reserve, supply uint64) uint64 {
	if supply == 0 {
		return FullCollateral
	}
	ratio := new(big.Int).SetUint64(reserve)
	ratio.Mul(ratio, new(big.Int).SetUint64(FullCollateral))
	ratio.Quo(ratio, new(big.Int).SetUint64(supply))
	if !ratio.IsUint64() {
		return ^uint64(0)
	}
	return ratio.Uint64()
}
