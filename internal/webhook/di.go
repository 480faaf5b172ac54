package webhook

import (
	"github.com/samber/do/v2"

	"github.com/hperssn/interviewclock/internal/config"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (Sender, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPSender(c.WebhookURL, c.WebhookTimeout), nil
	})
}
