package risk

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/config"
)

// NewModule returns the risk scoring module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger) (*Classifier, error) {
					return LoadClassifier(config.Risk.ModelPath, config.Risk.Threshold, log)
				},
			),
		),
	)
}
