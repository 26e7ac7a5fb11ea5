package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"agency-crm/internal/billing"
	"agency-crm/internal/config"
	"agency-crm/internal/models"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PaymentGateway is the part of the Razorpay API the checkout flow uses
type PaymentGateway interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	FetchOrder(orderID string) (map[string]interface{}, error)
}

type razorpayGateway struct {
	client *razorpay.Client
}

func (g *razorpayGateway) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return g.client.Order.Create(data, nil)
}

func (g *razorpayGateway) FetchOrder(orderID string) (map[string]interface{}, error) {
	return g.client.Order.Fetch(orderID, nil, nil)
}

// PaymentLedger is the billing surface online payments settle into
type PaymentLedger interface {
	Summary(ctx context.Context, projectID int) (*models.BillingSummary, error)
	RegisterPayment(ctx context.Context, projectID int, req *models.RegisterPaymentRequest, userID int) (*models.PaymentResult, error)
	FindPaymentByExternalRef(ctx context.Context, ref string) (*models.Payment, error)
}

const (
	verifyRetries    = 10
	defaultRetryWait = 200 * time.Millisecond
)

// OnlinePaymentService lets a client pay the outstanding balance through Razorpay
type OnlinePaymentService struct {
	Billing   PaymentLedger
	Gateway   PaymentGateway
	KeyID     string
	KeySecret string
	Currency  string
	// RetryWait spaces the lookups for a payment a concurrent verify is registering
	RetryWait time.Duration
}

func NewOnlinePaymentService(cfg *config.Config, ledger PaymentLedger) *OnlinePaymentService {
	s := &OnlinePaymentService{
		Billing:   ledger,
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Currency:  strings.ToUpper(cfg.Business.Currency),
	}
	if cfg.RazorpayEnabled() {
		s.Gateway = &razorpayGateway{client: razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)}
	}
	return s
}

func (s *OnlinePaymentService) Enabled() bool {
	return s.Gateway != nil && s.KeySecret != ""
}

// CreateOrder opens a gateway order for the project's remaining balance
func (s *OnlinePaymentService) CreateOrder(ctx context.Context, projectID int) (*models.OnlineOrder, error) {
	if !s.Enabled() {
		return nil, ErrOnlinePaymentsDisabled
	}
	summary, err := s.Billing.Summary(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !summary.Remaining.IsPositive() {
		return nil, ErrNothingToPay
	}

	amount := summary.Remaining.Round(2)
	minor := amount.Shift(2).IntPart()
	order, err := s.Gateway.CreateOrder(map[string]interface{}{
		"amount":   minor,
		"currency": s.Currency,
		"receipt":  fmt.Sprintf("project_%d", projectID),
		"notes": map[string]interface{}{
			"project_id": strconv.Itoa(projectID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create razorpay order: %w", err)
	}
	orderID, _ := order["id"].(string)
	if orderID == "" {
		return nil, errors.New("razorpay order response has no id")
	}

	log.Info().Str("component", "payments").Int("project_id", projectID).
		Str("order_id", orderID).Str("amount", amount.String()).Msg("Online order created")

	return &models.OnlineOrder{
		OrderID:   orderID,
		Amount:    amount,
		AmountMin: minor,
		Currency:  s.Currency,
		KeyID:     s.KeyID,
		ProjectID: projectID,
	}, nil
}

// Verify checks the checkout signature and records the payment once per gateway payment id
func (s *OnlinePaymentService) Verify(ctx context.Context, projectID int, req *models.VerifyOnlinePaymentRequest, userID int) (*models.PaymentResult, error) {
	if !s.Enabled() {
		return nil, ErrOnlinePaymentsDisabled
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, invalid("order id, payment id and signature are required")
	}
	if !s.validSignature(req.OrderID, req.PaymentID, req.Signature) {
		log.Warn().Str("component", "payments").Str("order_id", req.OrderID).Msg("Rejected payment with bad signature")
		return nil, ErrInvalidSignature
	}

	if existing, err := s.existing(ctx, projectID, req.PaymentID); existing != nil || err != nil {
		return existing, err
	}

	order, err := s.Gateway.FetchOrder(req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch razorpay order: %w", err)
	}
	if orderProject(order) != projectID {
		return nil, invalid("order does not belong to this project")
	}
	minor, ok := numberField(order["amount"])
	if !ok || minor <= 0 {
		return nil, errors.New("razorpay order has no amount")
	}

	result, err := s.Billing.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{
		Amount:      decimal.New(minor, -2),
		Method:      models.PaymentMobile,
		Note:        "Online payment " + req.PaymentID,
		ExternalRef: req.PaymentID,
	}, userID)
	if errors.Is(err, models.ErrConflict) || errors.Is(err, billing.ErrActionInProgress) {
		// another verify of the same payment may hold the project or have won the insert
		return s.awaitExisting(ctx, projectID, req.PaymentID, err)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("component", "payments").Int("project_id", projectID).
		Str("payment_id", req.PaymentID).Msg("Online payment registered")
	return result, nil
}

func (s *OnlinePaymentService) existing(ctx context.Context, projectID int, paymentID string) (*models.PaymentResult, error) {
	p, err := s.Billing.FindPaymentByExternalRef(ctx, paymentID)
	if err != nil || p == nil {
		return nil, err
	}
	if p.ProjectID != projectID {
		return nil, invalid("payment belongs to another project")
	}
	summary, err := s.Billing.Summary(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &models.PaymentResult{Payment: p, Summary: summary}, nil
}

// awaitExisting polls for the payment registered by a concurrent verify. When none
// shows up the original error is returned.
func (s *OnlinePaymentService) awaitExisting(ctx context.Context, projectID int, paymentID string, cause error) (*models.PaymentResult, error) {
	wait := s.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}
	for attempt := 0; attempt < verifyRetries; attempt++ {
		res, err := s.existing(ctx, projectID, paymentID)
		if res != nil || err != nil {
			return res, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, cause
}

func (s *OnlinePaymentService) validSignature(orderID, paymentID, signature string) bool {
	h := hmac.New(sha256.New, []byte(s.KeySecret))
	h.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func orderProject(order map[string]interface{}) int {
	notes, ok := order["notes"].(map[string]interface{})
	if !ok {
		return 0
	}
	switch v := notes["project_id"].(type) {
	case string:
		id, _ := strconv.Atoi(v)
		return id
	default:
		n, _ := numberField(v)
		return int(n)
	}
}

// numberField reads a JSON number decoded into an interface{}
func numberField(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
