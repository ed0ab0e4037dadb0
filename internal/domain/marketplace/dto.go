package marketplace

import (
	"github.com/greenledger/greenledger-api/internal/domain/credit"
	"github.com/greenledger/greenledger-api/internal/domain/ledger"
)

// MintRequest is the producer's mint call.
type MintRequest struct {
	BatchID        string  `json:"batch_id" validate:"required,min=1,max=128"`
	Units          float64 `json:"units" validate:"required,gt=0"`
	ProductionDate string  `json:"production_date" validate:"required,production_date"`
}

// PurchaseRequest names the credit and the units the buyer expects. A stale
// listing shows up as a units mismatch instead of a surprise purchase.
type PurchaseRequest struct {
	CreditID string  `json:"credit_id" validate:"required,uuid"`
	Units    float64 `json:"units" validate:"required,gt=0"`
}

// AvailableCredit is a marketplace listing entry.
type AvailableCredit struct {
	credit.Credit
	ProducerName string `json:"producer_name"`
}

// MintResponse carries the minted credit and its ledger entry.
type MintResponse struct {
	Credit          *credit.Credit      `json:"credit"`
	Transaction     *ledger.Transaction `json:"transaction"`
	TransactionHash string              `json:"transaction_hash"`
	Message         string              `json:"message"`
}

// TransactionResponse carries a committed ledger entry.
type TransactionResponse struct {
	Transaction     *ledger.Transaction `json:"transaction"`
	TransactionHash string              `json:"transaction_hash"`
	Message         string              `json:"message"`
}
