package payment

// CheckoutRequest starts a hosted checkout for a deposit or an invoice.
// Deposit and invoice checkouts charge the stored amount; Amount is only
// honored for listing payments.
type CheckoutRequest struct {
	Purpose   string `json:"purpose" binding:"required,oneof=lease_deposit invoice partner_listing"`
	LeaseID   int64  `json:"lease_id"`
	InvoiceID int64  `json:"invoice_id"`
	Amount    int64  `json:"amount" binding:"gte=0"`
	OrderInfo string `json:"order_info"`
}

// CheckoutResponse carries the provider URL the client is redirected to.
type CheckoutResponse struct {
	OrderID string `json:"order_id"`
	PayURL  string `json:"pay_url"`
}

// CallbackRequest is the provider's server-to-server notification payload.
type CallbackRequest struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}
