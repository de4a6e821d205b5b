package funding

import (
	"context"

	"github.com/google/uuid"
)

// Payout statuses.
const (
	PayoutStatusPending = "pending_settlement"
	PayoutStatusFailed  = "failed"
)

// PayoutInstruction asks the bank rail to send fiat to a holder after a burn.
type PayoutInstruction struct {
	BankAccount string
	Amount      uint64
	Reference   string
}

// PayoutReceipt is the rail's answer to an instruction.
type PayoutReceipt struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Payouts represents the connector to the fiat settlement rail.
type Payouts interface {
	Instruct(ctx context.Context, instruction PayoutInstruction) (PayoutReceipt, error)
}

// StaticPayouts accepts every instruction with a synthetic reference.
type StaticPayouts struct{}

// Instruct implements Payouts.
func (StaticPayouts) Instruct(_ context.Context, _ PayoutInstruction) (PayoutReceipt, error) {
	return PayoutReceipt{Reference: uuid.NewString(), Status: PayoutStatusPending}, nil
}
