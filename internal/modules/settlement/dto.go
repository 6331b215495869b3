package settlement

import "time"

type SubmitCheckoutRequest struct {
	LeaseID int64  `json:"lease_id" binding:"required"`
	Reason  string `json:"reason"`
}

type UpdateDraftRequest struct {
	Description string     `json:"description"`
	Items       []CostItem `json:"items"`
}

type AttachImageRequest struct {
	URL string `json:"url" binding:"required"`
}

type ReviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

type CreateSettlementInvoiceRequest struct {
	DueDate time.Time `json:"due_date" binding:"required"`
}
