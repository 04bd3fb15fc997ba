package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/usecase"
)

type createOrderRequest struct {
	Kind     string          `json:"kind" validate:"required"`
	PlanName string          `json:"planName" validate:"max=64"`
	TenantID string          `json:"tenantId" validate:"max=64"`
	Amount   decimal.Decimal `json:"amount"`
}

type orderResponse struct {
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"keyId"`
	PaymentID string `json:"paymentId"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req createOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err, s.dev)
		return
	}
	res, err := s.orders.CreateOrder(r.Context(), actor, usecase.CreateOrderRequest{
		Kind:     model.PaymentKind(req.Kind),
		PlanName: req.PlanName,
		TenantID: req.TenantID,
		Amount:   req.Amount,
	})
	if err != nil {
		writeError(w, err, s.dev)
		return
	}
	writeOK(w, http.StatusCreated, "order created", orderResponse{
		OrderID:   res.OrderID,
		Amount:    res.Amount,
		Currency:  res.Currency,
		KeyID:     res.KeyID,
		PaymentID: res.PaymentID,
	})
}

type verifyRequest struct {
	OrderID   string `json:"orderId" validate:"required,max=128"`
	PaymentID string `json:"paymentId" validate:"required,max=128"`
	Signature string `json:"signature" validate:"max=256"`
}

type verifyResponse struct {
	OrderID          string               `json:"orderId"`
	Status           model.PaymentStatus  `json:"status"`
	AlreadyProcessed bool                 `json:"alreadyProcessed"`
	Subscription     *subscriptionPayload `json:"subscription,omitempty"`
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req verifyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err, s.dev)
		return
	}
	res, err := s.verify.Verify(r.Context(), actor, usecase.VerifyRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		writeError(w, err, s.dev)
		return
	}

	out := verifyResponse{OrderID: req.OrderID, Status: res.Payment.Status, AlreadyProcessed: res.AlreadyProcessed}
	if res.Payment.Kind == model.PaymentKindSubscription {
		if sub, err := s.query.GetSubscription(r.Context(), actor); err == nil {
			out.Subscription = toSubscriptionPayload(sub)
		}
	}
	msg := "payment verified"
	if res.AlreadyProcessed {
		msg = "already processed"
	}
	writeOK(w, http.StatusOK, msg, out)
}

type webhookResponse struct {
	Event      string `json:"event"`
	Reconciled bool   `json:"reconciled"`
}

// paymentWebhook authenticates by signature only. The body is read once and
// handed over untouched.
func (s *Server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, domain.Wrap(domain.ErrInvalidArgument, err), s.dev)
		return
	}
	res, err := s.webhook.Handle(r.Context(), raw, r.Header.Get(s.signatureHeader))
	if err != nil {
		writeError(w, err, s.dev)
		return
	}
	msg := "reconciled"
	switch {
	case res.Ignored:
		msg = "event ignored"
	case !res.Reconciled:
		msg = "not reconciled"
	}
	writeOK(w, http.StatusOK, msg, webhookResponse{Event: res.Event, Reconciled: res.Reconciled})
}

type refundRequest struct {
	PaymentID string `json:"paymentId" validate:"required,max=128"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"max=500"`
}

type creditNotePayload struct {
	ID               string          `json:"id"`
	CreditNoteNumber string          `json:"creditNoteNumber"`
	PaymentID        string          `json:"paymentId"`
	Amount           decimal.Decimal `json:"amount"`
	Reason           string          `json:"reason,omitempty"`
	IssuedBy         string          `json:"issuedBy"`
	GatewayRefundID  string          `json:"gatewayRefundId"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type refundResponse struct {
	CreditNote    creditNotePayload   `json:"creditNote"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	Replayed      bool                `json:"replayed"`
}

const HeaderIdempotencyKey = "Idempotency-Key"

func (s *Server) refundPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req refundRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err, s.dev)
		return
	}
	key := r.Header.Get(HeaderIdempotencyKey)
	if len(key) > 128 {
		writeError(w, domain.Invalid("Idempotency-Key is too long"), s.dev)
		return
	}
	res, err := s.refund.Refund(r.Context(), actor, usecase.RefundRequest{
		GatewayPaymentID: req.PaymentID,
		Amount:           req.Amount,
		Reason:           req.Reason,
		IdempotencyKey:   key,
	})
	if err != nil {
		writeError(w, err, s.dev)
		return
	}
	cn := res.CreditNote
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeOK(w, status, "refund processed", refundResponse{
		CreditNote: creditNotePayload{
			ID:               cn.ID,
			CreditNoteNumber: cn.CreditNoteNumber,
			PaymentID:        cn.PaymentID,
			Amount:           cn.Amount,
			Reason:           cn.Reason,
			IssuedBy:         cn.IssuedBy,
			GatewayRefundID:  cn.GatewayRefundID,
			CreatedAt:        cn.CreatedAt,
		},
		PaymentStatus: res.Payment.Status,
		Replayed:      res.Replayed,
	})
}

type offlineRequest struct {
	Kind            string          `json:"kind" validate:"required"`
	Mode            string          `json:"mode" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	TenantID        string          `json:"tenantId" validate:"max=64"`
	Note            string          `json:"note" validate:"max=500"`
	TransactionDate *time.Time      `json:"transactionDate"`
}

func (s *Server) recordOffline(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req offlineRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err, s.dev)
		return
	}
	p, err := s.offline.Record(r.Context(), actor, usecase.OfflineRequest{
		Kind:            model.PaymentKind(req.Kind),
		Mode:            model.PaymentMode(req.Mode),
		Amount:          req.Amount,
		TenantID:        req.TenantID,
		Note:            req.Note,
		TransactionDate: req.TransactionDate,
	})
	if err != nil {
		writeError(w, err, s.dev)
		return
	}
	writeOK(w, http.StatusCreated, "payment recorded", toPaymentPayload(p))
}

type paymentPayload struct {
	ID                    string              `json:"id"`
	OrderID               string              `json:"orderId"`
	GatewayPaymentID      string              `json:"gatewayPaymentId,omitempty"`
	Kind                  model.PaymentKind   `json:"kind"`
	Mode                  model.PaymentMode   `json:"mode"`
	Status                model.PaymentStatus `json:"status"`
	Amount                decimal.Decimal     `json:"amount"`
	RefundedAmount        decimal.Decimal     `json:"refundedAmount"`
	Currency              string              `json:"currency"`
	TenantID              string              `json:"tenantId,omitempty"`
	PlanName              string              `json:"planName,omitempty"`
	SubscriptionProcessed bool                `json:"subscriptionProcessed"`
	TransactionDate       time.Time           `json:"transactionDate"`
	CreatedAt             time.Time           `json:"createdAt"`
}

func toPaymentPayload(p *model.Payment) paymentPayload {
	out := paymentPayload{
		ID:                    p.ID,
		OrderID:               p.GatewayOrderID,
		Kind:                  p.Kind,
		Mode:                  p.Mode,
		Status:                p.Status,
		Amount:                p.Amount,
		RefundedAmount:        p.RefundedAmount,
		Currency:              p.Currency,
		PlanName:              p.PlanName(),
		SubscriptionProcessed: p.SubscriptionProcessed,
		TransactionDate:       p.TransactionDate,
		CreatedAt:             p.CreatedAt,
	}
	if p.GatewayPaymentID != nil {
		out.GatewayPaymentID = *p.GatewayPaymentID
	}
	if p.TenantID != nil {
		out.TenantID = *p.TenantID
	}
	return out
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	p, err := s.query.GetPayment(r.Context(), actor, chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, err, s.dev)
		return
	}
	writeOK(w, http.StatusOK, "ok", toPaymentPayload(p))
}

type subscriptionPayload struct {
	Plan       model.PlanTier           `json:"plan,omitempty"`
	Status     model.SubscriptionStatus `json:"status"`
	StartDate  *time.Time               `json:"startDate,omitempty"`
	ExpiryDate *time.Time               `json:"expiryDate,omitempty"`
}

func toSubscriptionPayload(sub *model.Subscription) *subscriptionPayload {
	return &subscriptionPayload{Plan: sub.Plan, Status: sub.Status, StartDate: sub.StartDate, ExpiryDate: sub.ExpiryDate}
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	sub, err := s.query.GetSubscription(r.Context(), actor)
	if err != nil {
		writeError(w, err, s.dev)
		return
	}
	writeOK(w, http.StatusOK, "ok", toSubscriptionPayload(sub))
}

type planPayload struct {
	Name        model.PlanTier  `json:"name"`
	Price       decimal.Decimal `json:"price"`
	AmountMinor int64           `json:"amountMinor"`
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	plans := s.query.Plans()
	out := make([]planPayload, 0, len(plans))
	for _, p := range plans {
		out = append(out, planPayload{Name: p.Name, Price: p.Price, AmountMinor: model.ToMinor(p.Price)})
	}
	writeOK(w, http.StatusOK, "ok", out)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "ok", map[string]string{"status": "ok", "gatewayMode": s.gatewayMode})
}
