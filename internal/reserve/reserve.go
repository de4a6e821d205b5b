package reserve

import (
	"math/bits"
	"time"
)

const (
	// DefaultMintLimit caps a single mint at 1,000,000.00 BRL expressed in centavos.
	DefaultMintLimit uint64 = 100_000_000

	// MaxDecimals bounds the precision accepted when the mint is created.
	MaxDecimals uint8 = 18
)

// Reserve is the persisted accounting record of the token supply and its BRL backing.
type Reserve struct {
	Address          string    `json:"address"`
	Bump             uint8     `json:"bump"`
	Authority        string    `json:"authority"`
	PendingAuthority string    `json:"pending_authority,omitempty"`
	Mint             string    `json:"mint"`
	Decimals         uint8     `json:"decimals"`
	TotalSupply      uint64    `json:"total_supply"`
	BRLReserve       uint64    `json:"brl_reserve"`
	TotalMinted      uint64    `json:"total_minted"`
	TotalBurned      uint64    `json:"total_burned"`
	MintLimit        uint64    `json:"mint_limit"`
	Paused           bool      `json:"is_paused"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EntryKind names the operation recorded by a journal entry.
type EntryKind string

const (
	KindInitialize        EntryKind = "initialize"
	KindMint              EntryKind = "mint"
	KindBurn              EntryKind = "burn"
	KindPause             EntryKind = "pause"
	KindUnpause           EntryKind = "unpause"
	KindTransferAuthority EntryKind = "transfer_authority"
	KindProposeAuthority  EntryKind = "propose_authority"
	KindAcceptAuthority   EntryKind = "accept_authority"
	KindSetMintLimit      EntryKind = "set_mint_limit"
)

// Entry is one committed operation in the reserve journal.
type Entry struct {
	ID          string    `json:"id"`
	Reserve     string    `json:"reserve"`
	Kind        EntryKind `json:"kind"`
	Actor       string    `json:"actor"`
	Amount      uint64    `json:"amount,omitempty"`
	Account     string    `json:"account,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	TotalSupply uint64    `json:"total_supply"`
	CreatedAt   time.Time `json:"created_at"`
}

// Receipt is returned by supply-changing operations.
type Receipt struct {
	Reserve Reserve `json:"reserve"`
	Entry   Entry   `json:"entry"`
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// applyMint returns r with the counters advanced by amount, or the first arithmetic error.
func applyMint(r Reserve, amount uint64) (Reserve, error) {
	var err error
	if r.TotalSupply, err = checkedAdd(r.TotalSupply, amount); err != nil {
		return Reserve{}, err
	}
	if r.BRLReserve, err = checkedAdd(r.BRLReserve, amount); err != nil {
		return Reserve{}, err
	}
	if r.TotalMinted, err = checkedAdd(r.TotalMinted, amount); err != nil {
		return Reserve{}, err
	}
	return r, nil
}

func applyBurn(r Reserve, amount uint64) (Reserve, error) {
	var err error
	if r.TotalSupply, err = checkedSub(r.TotalSupply, amount); err != nil {
		return Reserve{}, err
	}
	if r.BRLReserve, err = checkedSub(r.BRLReserve, amount); err != nil {
		return Reserve{}, err
	}
	if r.TotalBurned, err = checkedAdd(r.TotalBurned, amount); err != nil {
		return Reserve{}, err
	}
	return r, nil
}
