package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/Wirlhawk/skillswap-sub000/internal/tracing"
)

// Tracing starts a New Relic web transaction per request and places it in the
// request context, where services pick it up for their segments. It returns no
// handlers when the tracer has no agent application.
func Tracing(tracer tracing.Tracer) []gin.HandlerFunc {
	app := tracer.Application()
	if app == nil {
		return nil
	}

	return []gin.HandlerFunc{
		nrgin.Middleware(app),
		func(c *gin.Context) {
			if txn := nrgin.Transaction(c); txn != nil {
				txn.AddAttribute("request_id", RequestIDFrom(c))
				c.Request = c.Request.WithContext(newrelic.NewContext(c.Request.Context(), txn))
			}
			c.Next()
		},
	}
}
