package handlers

import (
	"net"
	"net/http"
	"strings"

	"leadpilot-backend/internal/auth"
	"leadpilot-backend/pkg/httputil"
)

// tenantIDFromRequest returns the tenant id injected by the JWT middleware,
// writing a 401 when it is missing.
func tenantIDFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, ok := auth.GetTenantIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Tenant not found in token context")
		return "", false
	}
	return tenantID, true
}

// ClientIP returns the caller address without its port. RealIP middleware
// has already folded X-Forwarded-For / X-Real-IP into RemoteAddr.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// authorFromRequest names the dashboard user for lead notes.
func authorFromRequest(r *http.Request) string {
	if id, ok := auth.GetUserIDFromContext(r.Context()); ok {
		return id.String()
	}
	return ""
}
