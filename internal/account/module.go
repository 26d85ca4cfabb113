package account

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/config"
	"github.com/secureauth-ai/sentinel/internal/store"
)

// NewModule returns the credential store module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func() Tokenizer {
					return NewBcryptTokenizer()
				},
			),
			fx.Annotate(
				func(config *config.AppConfig, st store.Store, tok Tokenizer, log *zap.Logger) *Service {
					return NewService(st, tok, log, config.Store.HistoryLimit)
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
