package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/usecase"
)

type Options struct {
	Port               int
	RequestTimeout     time.Duration
	SignatureHeader    string
	GatewayMode        string
	RateLimitPerMinute int
	Dev                bool
}

// Server exposes the payment API over chi.
type Server struct {
	orders  usecase.OrderUseCase
	verify  usecase.VerifyUseCase
	webhook usecase.WebhookUseCase
	refund  usecase.RefundUseCase
	offline usecase.OfflineUseCase
	query   usecase.QueryUseCase

	auth    *AuthManager
	limiter adapter.RateLimiter // nil disables rate limiting

	opts            Options
	dev             bool
	signatureHeader string
	gatewayMode     string
	log             *zerolog.Logger
	srv             *http.Server
}

func NewServer(
	orders usecase.OrderUseCase,
	verify usecase.VerifyUseCase,
	webhook usecase.WebhookUseCase,
	refund usecase.RefundUseCase,
	offline usecase.OfflineUseCase,
	query usecase.QueryUseCase,
	auth *AuthManager,
	limiter adapter.RateLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = "X-Razorpay-Signature"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "http").Logger()
	return &Server{
		orders: orders, verify: verify, webhook: webhook, refund: refund, offline: offline, query: query,
		auth:            auth,
		limiter:         limiter,
		opts:            opts,
		dev:             opts.Dev,
		signatureHeader: opts.SignatureHeader,
		gatewayMode:     opts.GatewayMode,
		log:             &l,
	}
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log, s.dev), RequestLog(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.listPlans)
		r.Post("/payments/webhook", s.paymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Authenticate(s.dev))
			rl := func(route string) Middleware {
				return RateLimit(s.limiter, s.opts.RateLimitPerMinute, route, s.log, s.dev)
			}
			r.With(rl("orders")).Post("/payments/orders", s.createOrder)
			r.With(rl("verify")).Post("/payments/verify", s.verifyPayment)
			r.Post("/payments/refund", s.refundPayment)
			r.Post("/payments/offline", s.recordOffline)
			r.Get("/payments/{orderId}", s.getPayment)
			r.Get("/subscription", s.getSubscription)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.opts.Port).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
