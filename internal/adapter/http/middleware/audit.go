package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes lists the write routes whose effect is not already recorded
// by a service. Keys are gin route patterns.
var auditedRoutes = map[string]auditRoute{
	http.MethodPost + " /api/v1/otp": {domain.AuditActionOTP, "otp"},
}

// AuditLog creates an audit middleware that records successful write
// requests on the routes in auditedRoutes.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		route, ok := mapRouteToAction(c.Request.Method, c.FullPath())
		if !ok {
			return
		}

		actor, _ := UserID(c)
		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
			"ip":     c.ClientIP(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actor,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   actor,
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(method, fullPath string) (auditRoute, bool) {
	r, ok := auditedRoutes[method+" "+fullPath]
	return r, ok
}
