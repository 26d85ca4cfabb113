package gate

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/account"
	"github.com/secureauth-ai/sentinel/internal/config"
	"github.com/secureauth-ai/sentinel/internal/risk"
	"github.com/secureauth-ai/sentinel/internal/store"
)

// NewModule returns the MFA gate module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig, st store.Store, tok account.Tokenizer, cls *risk.Classifier, log *zap.Logger) *Service {
					return NewService(st, tok, cls, &config.Gate, log, config.Store.HistoryLimit)
				},
			),
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log)
				},
			),
		),
	)
}
