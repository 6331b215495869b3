package lease

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateLeaseRequest struct {
	TenantID      int64           `json:"tenant_id" binding:"required"`
	RoomID        int64           `json:"room_id" binding:"required"`
	StartDate     time.Time       `json:"start_date" binding:"required"`
	EndDate       time.Time       `json:"end_date" binding:"required"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
}

type UploadDocumentRequest struct {
	DocumentURL string `json:"document_url" binding:"required"`
}

type ConfirmDepositRequest struct {
	Method    string          `json:"method" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}
