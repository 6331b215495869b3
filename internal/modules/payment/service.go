package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentora/internal/config"
	"rentora/internal/domain"
	"rentora/internal/pkg/apperr"
	"rentora/internal/repository"
)

const invoiceOrderPrefix = "INV"

// DepositConfirmer activates a lease after its deposit payment clears.
type DepositConfirmer interface {
	ConfirmDeposit(ctx context.Context, actor domain.Actor, leaseID int64, method string, amount decimal.Decimal, reference string) error
}

// InvoicePayer settles an invoice after its payment clears.
type InvoicePayer interface {
	MarkPaid(ctx context.Context, actor domain.Actor, invoiceID int64, direct bool) error
}

// extraPayload is the marker embedded in checkout requests so callbacks can
// be routed without a lookup table on the provider side.
type extraPayload struct {
	Purpose string `json:"purpose"`
	LeaseID int64  `json:"lease_id,omitempty"`
}

type Service struct {
	payments    *repository.GatewayPaymentRepository
	leases      *repository.LeaseRepository
	invoiceRows *repository.InvoiceRepository
	deposits    DepositConfirmer
	invoices    InvoicePayer
	cfg         *config.Config
	log         *zap.SugaredLogger
}

func NewService(store *repository.Store, deposits DepositConfirmer, invoices InvoicePayer, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		payments:    store.Payments,
		leases:      store.Leases,
		invoiceRows: store.Invoices,
		deposits:    deposits,
		invoices:    invoices,
		cfg:         cfg,
		log:         log,
	}
}

// BuildCheckout registers a pending payment row and returns the hosted
// checkout URL for it. The charged amount is taken from the lease or invoice
// being paid, never from the request; only listing payments carry a
// caller-supplied amount.
func (s *Service) BuildCheckout(ctx context.Context, actor domain.Actor, req CheckoutRequest) (*CheckoutResponse, error) {
	purpose := domain.PaymentPurpose(req.Purpose)

	var (
		orderID   string
		extraData string
		leaseID   *int64
		invoiceID *int64
		amount    decimal.Decimal
	)
	nonce := time.Now().UnixNano()
	switch purpose {
	case domain.PurposeLeaseDeposit:
		if req.LeaseID <= 0 {
			return nil, apperr.Validation("lease_id is required for a deposit payment")
		}
		lease, err := s.leases.GetByID(ctx, req.LeaseID)
		if err != nil {
			return nil, apperr.NotFound("lease not found")
		}
		if !actor.IsStaff() && lease.TenantID != actor.ID {
			return nil, apperr.AccessDenied("lease %d does not belong to you", req.LeaseID)
		}
		if lease.Status != domain.LeaseSignedPendingDeposit {
			return nil, apperr.InvalidState("lease is not awaiting a deposit")
		}
		if !lease.DepositAmount.IsPositive() {
			return nil, apperr.Validation("lease %d has no deposit amount", req.LeaseID)
		}
		amount = lease.DepositAmount
		orderID = fmt.Sprintf("DEP-%d-%d", req.LeaseID, nonce)
		extraData, err = encodeDepositMarker(req.LeaseID)
		if err != nil {
			return nil, apperr.System(err, "encode payment marker")
		}
		leaseID = &req.LeaseID
	case domain.PurposeInvoice:
		if req.InvoiceID <= 0 {
			return nil, apperr.Validation("invoice_id is required for an invoice payment")
		}
		inv, err := s.invoiceRows.GetByID(ctx, req.InvoiceID)
		if err != nil {
			return nil, apperr.NotFound("invoice not found")
		}
		lease, err := s.leases.GetByID(ctx, inv.LeaseID)
		if err != nil {
			return nil, apperr.System(err, "lookup lease %d", inv.LeaseID)
		}
		if actor.IsStaff() {
			if !actor.CanAccessBranch(lease.BranchCode) {
				return nil, apperr.AccessDenied("invoice %d belongs to another branch", req.InvoiceID)
			}
		} else if lease.TenantID != actor.ID {
			return nil, apperr.AccessDenied("invoice %d does not belong to you", req.InvoiceID)
		}
		if inv.Status == domain.InvoicePaid {
			return nil, apperr.InvalidState("invoice %d is already paid", req.InvoiceID)
		}
		amount = inv.Amount
		orderID = fmt.Sprintf("%s-%d-%d", invoiceOrderPrefix, req.InvoiceID, nonce)
		invoiceID = &req.InvoiceID
	case domain.PurposePartnerListing:
		if req.Amount <= 0 {
			return nil, apperr.Validation("amount is required for a listing payment")
		}
		amount = decimal.NewFromInt(req.Amount)
		orderID = fmt.Sprintf("LST-%d", nonce)
	default:
		return nil, apperr.Validation("unknown payment purpose")
	}

	// the gateway charges whole currency units
	amount = amount.Ceil()

	requestID := fmt.Sprintf("%s-r", orderID)
	amountStr := amount.String()
	signature := rawSignature(s.cfg.GatewaySecretKey, [][2]string{
		{"accessKey", s.cfg.GatewayAccessKey},
		{"amount", amountStr},
		{"extraData", extraData},
		{"ipnUrl", s.cfg.GatewayNotifyURL},
		{"orderId", orderID},
		{"orderInfo", req.OrderInfo},
		{"partnerCode", s.cfg.GatewayPartnerCode},
		{"redirectUrl", s.cfg.GatewayRedirectURL},
		{"requestId", requestID},
		{"requestType", "captureWallet"},
	})

	q := url.Values{}
	q.Set("partnerCode", s.cfg.GatewayPartnerCode)
	q.Set("accessKey", s.cfg.GatewayAccessKey)
	q.Set("requestId", requestID)
	q.Set("orderId", orderID)
	q.Set("orderInfo", req.OrderInfo)
	q.Set("amount", amountStr)
	q.Set("redirectUrl", s.cfg.GatewayRedirectURL)
	q.Set("ipnUrl", s.cfg.GatewayNotifyURL)
	q.Set("extraData", extraData)
	q.Set("requestType", "captureWallet")
	q.Set("signature", signature)
	payURL := s.cfg.GatewayEndpoint + "?" + q.Encode()

	row := &domain.GatewayPayment{
		OrderID:     orderID,
		RequestID:   requestID,
		Amount:      amount,
		Purpose:     purpose,
		LeaseID:     leaseID,
		InvoiceID:   invoiceID,
		Status:      domain.GatewayPaymentCreated,
		CheckoutURL: payURL,
	}
	if err := s.payments.Create(ctx, row); err != nil {
		return nil, apperr.System(err, "record checkout")
	}

	s.log.Infow("checkout created", "order_id", orderID, "purpose", req.Purpose, "actor_id", actor.ID)
	return &CheckoutResponse{OrderID: orderID, PayURL: payURL}, nil
}

// HandleCallback processes a provider notification. The signature is checked
// before anything is touched; a tampered payload leaves every record as it
// was. Business failures after the payment row is marked paid are returned
// for logging but the HTTP layer still acknowledges the provider.
func (s *Service) HandleCallback(ctx context.Context, cb CallbackRequest, rawBody string) error {
	expected := rawSignature(s.cfg.GatewaySecretKey, [][2]string{
		{"accessKey", s.cfg.GatewayAccessKey},
		{"amount", strconv.FormatInt(cb.Amount, 10)},
		{"extraData", cb.ExtraData},
		{"message", cb.Message},
		{"orderId", cb.OrderID},
		{"orderInfo", cb.OrderInfo},
		{"orderType", cb.OrderType},
		{"partnerCode", cb.PartnerCode},
		{"payType", cb.PayType},
		{"requestId", cb.RequestID},
		{"responseTime", strconv.FormatInt(cb.ResponseTime, 10)},
		{"resultCode", strconv.Itoa(cb.ResultCode)},
		{"transId", strconv.FormatInt(cb.TransID, 10)},
	})
	if !signatureEqual(expected, cb.Signature) {
		return apperr.Authenticity("callback signature mismatch")
	}

	if cb.ResultCode != 0 {
		if err := s.payments.MarkFailed(ctx, cb.OrderID, rawBody, cb.Message); err != nil {
			s.log.Errorw("record failed payment", "order_id", cb.OrderID, "err", err)
		}
		s.log.Infow("payment declined", "order_id", cb.OrderID, "result_code", cb.ResultCode)
		return nil
	}

	row, err := s.payments.GetByOrderID(ctx, cb.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warnw("callback for unknown order", "order_id", cb.OrderID)
			return nil
		}
		return apperr.System(err, "lookup payment row")
	}
	if !row.Amount.Equal(decimal.NewFromInt(cb.Amount)) {
		s.ignore(ctx, cb.OrderID, rawBody,
			fmt.Sprintf("amount %d does not match the registered %s", cb.Amount, row.Amount))
		return nil
	}

	return s.route(ctx, cb, rawBody)
}

// route dispatches a confirmed payment. A deposit callback whose lease is
// not awaiting a deposit is recorded as ignored instead of paid, so the row
// never claims a confirmation that did not happen.
func (s *Service) route(ctx context.Context, cb CallbackRequest, rawBody string) error {
	reference := strconv.FormatInt(cb.TransID, 10)

	if marker, ok := decodeMarker(cb.ExtraData); ok && marker.Purpose == string(domain.PurposeLeaseDeposit) {
		lease, err := s.leases.GetByID(ctx, marker.LeaseID)
		if err != nil {
			s.ignore(ctx, cb.OrderID, rawBody, "deposit callback for unknown lease")
			return nil
		}
		if lease.Status != domain.LeaseSignedPendingDeposit {
			s.ignore(ctx, cb.OrderID, rawBody, fmt.Sprintf("lease %d is %s, not awaiting deposit", lease.ID, lease.Status))
			return nil
		}
		changed, err := s.markPaid(ctx, cb, rawBody)
		if err != nil || !changed {
			return err
		}
		if err := s.deposits.ConfirmDeposit(ctx, domain.System(), marker.LeaseID, "gateway", decimal.NewFromInt(cb.Amount), reference); err != nil {
			return apperr.Wrap(err, apperr.KindOf(err), "confirm deposit from callback")
		}
		return nil
	}

	if invoiceID, ok := parseInvoiceOrderID(cb.OrderID); ok {
		changed, err := s.markPaid(ctx, cb, rawBody)
		if err != nil || !changed {
			return err
		}
		if err := s.invoices.MarkPaid(ctx, domain.System(), invoiceID, false); err != nil {
			return apperr.Wrap(err, apperr.KindOf(err), "mark invoice paid from callback")
		}
		return nil
	}

	// Anything else is a listing or other out-of-band payment. The paid row
	// is the whole record; nothing downstream reacts to it.
	if _, err := s.markPaid(ctx, cb, rawBody); err != nil {
		return err
	}
	s.log.Infow("unrelated payment recorded", "order_id", cb.OrderID)
	return nil
}

// markPaid flips the payment row to paid exactly once. changed=false means a
// provider retry of a callback that was already processed.
func (s *Service) markPaid(ctx context.Context, cb CallbackRequest, rawBody string) (bool, error) {
	changed, err := s.payments.MarkPaidIdempotent(ctx, cb.OrderID, strconv.FormatInt(cb.TransID, 10), rawBody, time.Now())
	if err != nil {
		return false, apperr.System(err, "record paid callback")
	}
	if !changed {
		s.log.Infow("duplicate callback skipped", "order_id", cb.OrderID)
	}
	return changed, nil
}

func (s *Service) ignore(ctx context.Context, orderID, rawBody, reason string) {
	if err := s.payments.MarkIgnored(ctx, orderID, rawBody, reason); err != nil {
		s.log.Errorw("record ignored payment", "order_id", orderID, "err", err)
	}
	s.log.Warnw("callback ignored", "order_id", orderID, "reason", reason)
}

// encodeDepositMarker embeds the deposit purpose and lease id in the opaque
// extraData field echoed back by the provider.
func encodeDepositMarker(leaseID int64) (string, error) {
	marker, err := json.Marshal(extraPayload{Purpose: string(domain.PurposeLeaseDeposit), LeaseID: leaseID})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(marker), nil
}

func decodeMarker(extraData string) (extraPayload, bool) {
	if extraData == "" {
		return extraPayload{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(extraData)
	if err != nil {
		return extraPayload{}, false
	}
	var p extraPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.LeaseID <= 0 {
		return extraPayload{}, false
	}
	return p, true
}

// parseInvoiceOrderID extracts the invoice id from "INV-<id>-<nonce>".
func parseInvoiceOrderID(orderID string) (int64, bool) {
	parts := strings.Split(orderID, "-")
	if len(parts) < 2 || parts[0] != invoiceOrderPrefix {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
