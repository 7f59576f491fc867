package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soloware/dealdesk/internal/analytics"
	analyticsdomain "github.com/soloware/dealdesk/internal/analytics/domain"
	"github.com/soloware/dealdesk/internal/auth"
	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/copilot"
	copilotdomain "github.com/soloware/dealdesk/internal/copilot/domain"
	"github.com/soloware/dealdesk/internal/export"
	"github.com/soloware/dealdesk/internal/merchant"
	merchantdomain "github.com/soloware/dealdesk/internal/merchant/domain"
	"github.com/soloware/dealdesk/internal/observability/metrics"
	"github.com/soloware/dealdesk/internal/payment"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	"github.com/soloware/dealdesk/internal/proposal"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"github.com/soloware/dealdesk/internal/ratelimit"
	"github.com/soloware/dealdesk/internal/subscription"
	subscriptiondomain "github.com/soloware/dealdesk/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	auth.Module,
	ratelimit.Module,
	metrics.Module,
	proposal.Module,
	merchant.Module,
	payment.Module,
	subscription.Module,
	analytics.Module,
	copilot.Module,
	export.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, m *metrics.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(m.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", m.Handler())

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	authn    auth.Authenticator
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	proposal proposaldomain.Service
	merchant merchantdomain.Service
	checkout paymentdomain.CheckoutService
	webhooks paymentdomain.ReconcileService
	subs     subscriptiondomain.Service
	insights analyticsdomain.Service
	copilot  copilotdomain.Service
	export   export.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Authn        auth.Authenticator
	Limiter      ratelimit.Limiter
	Metrics      *metrics.Metrics
	ProposalSvc  proposaldomain.Service
	MerchantSvc  merchantdomain.Service
	CheckoutSvc  paymentdomain.CheckoutService
	WebhookSvc   paymentdomain.ReconcileService
	SubSvc       subscriptiondomain.Service
	AnalyticsSvc analyticsdomain.Service
	CopilotSvc   copilotdomain.Service
	ExportSvc    export.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		log:      p.Log.Named("http.server"),
		authn:    p.Authn,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
		proposal: p.ProposalSvc,
		merchant: p.MerchantSvc,
		checkout: p.CheckoutSvc,
		webhooks: p.WebhookSvc,
		subs:     p.SubSvc,
		insights: p.AnalyticsSvc,
		copilot:  p.CopilotSvc,
		export:   p.ExportSvc,
	}

	s.registerAPIRoutes()
	s.registerPublicRoutes()
	s.registerWebhookRoutes()
	s.registerDevRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Proposals --------
	api.GET("/proposals", s.ListProposals)
	api.POST("/proposals", s.CreateProposal)
	api.GET("/proposals/:id", s.GetProposal)
	api.PATCH("/proposals/:id/status", s.UpdateProposalStatus)
	api.POST("/proposals/:id/share-link", s.IssueShareLink)
	api.POST("/proposals/:id/payment-link", s.RequestPaymentLink)
	api.POST("/proposals/:id/checkout-session", s.CreateProposalSession)
	api.POST("/proposals/:id/mark-paid", s.MarkPaidManually)

	// -------- Dashboard --------
	api.GET("/dashboard", s.GetDashboard)
	api.GET("/dashboard/kpis", s.GetKPIs)
	api.GET("/dashboard/charts", s.GetCharts)
	api.GET("/dashboard/health", s.GetHealth)
	api.GET("/dashboard/insights", s.GetInsights)
	api.GET("/dashboard/actions", s.GetActions)
	api.GET("/dashboard/pending", s.GetPendingRanked)
	api.GET("/dashboard/summary", s.GetSummary)

	// -------- Copilot --------
	api.GET("/copilot/plan", s.GetCopilotPlan)

	// -------- Export --------
	api.GET("/export", s.ExportRecords)

	// -------- Subscriptions --------
	api.POST("/subscriptions/checkout", s.CreateSubscriptionCheckout)
	api.GET("/subscriptions/me", s.GetMySubscription)

	// -------- Merchant connection --------
	api.POST("/merchant/connect", s.ConnectMerchantOAuth)
	api.POST("/merchant/api-key", s.RegisterMerchantAPIKey)
	api.GET("/merchant/status", s.GetMerchantStatus)
	api.DELETE("/merchant", s.DisconnectMerchant)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public")

	public.GET("/contracts/:token", s.ViewPublicContract)
	public.POST("/contracts/:token/sign", s.RateLimit("contract_sign", 0.2, 5), s.SignContract)

	s.engine.GET("/pay/:hash", s.RateLimit("payment_page", 1, 20), s.GetPaymentPage)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payments/:provider", s.HandlePaymentWebhook)
}

// registerDevRoutes exposes a token mint outside production so local
// clients can authenticate without an identity provider.
func (s *Server) registerDevRoutes() {
	if s.cfg.IsProduction() {
		return
	}
	s.engine.POST("/auth/dev-token", s.IssueDevToken)
}
