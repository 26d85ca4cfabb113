package server

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/secureauth-ai/sentinel/internal/account"
	"github.com/secureauth-ai/sentinel/internal/config"
	"github.com/secureauth-ai/sentinel/internal/gate"
	"github.com/secureauth-ai/sentinel/internal/tenant"
)

type Server struct {
	config *config.AppConfig
	log    *zap.Logger
	http   *http.Server
}

type Params struct {
	fx.In

	Config         *config.AppConfig
	Logger         *zap.Logger
	TenantHandler  *tenant.Handler
	AccountHandler *account.Handler
	GateHandler    *gate.Handler
}

func NewServer(p Params) *Server {
	r := chi.NewRouter()
	r.Use(requestLogger(p.Logger))
	r.Use(recoverer(p.Logger))

	r.Route("/api/tenants", func(r chi.Router) {
		p.TenantHandler.Register(r)
		p.AccountHandler.Register(r)
		p.GateHandler.Register(r)
	})

	addr := fmt.Sprintf("%s:%s", p.Config.Server.Host, p.Config.Server.Port)
	return &Server{
		config: p.Config,
		log:    p.Logger,
		http: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  p.Config.Server.ReadTimeout,
			WriteTimeout: p.Config.Server.WriteTimeout,
		},
	}
}

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		zap.String("address", s.http.Addr),
		zap.Object("config", serverConfigToField(s.config)),
	)

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", os.Getenv("APP_ENV"))
		enc.AddString("store_driver", config.Store.Driver)
		enc.AddInt("history_limit", config.Store.HistoryLimit)
		enc.AddFloat64("risk_threshold", config.Risk.Threshold)
		return nil
	})
}

func (s *Server) Stop() {
	s.log.Info("shutting down HTTP server")

	ctx := context.Background()
	if t := s.config.Server.ShutdownTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Error("graceful shutdown failed", zap.Error(err))
	}
}
