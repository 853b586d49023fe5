package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc/metadata"

	"github.com/jcmexdev/shoe-market/internal/pkg/interceptors/constants"
)

// HeaderPrincipal carries the caller identity on HTTP requests.
const HeaderPrincipal = "X-Principal"

// AttachCallerMetadata stores the chi request id and the caller principal in
// the request context and on outgoing gRPC metadata, so ledger calls made
// while serving the request carry both.
func AttachCallerMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		principal := strings.TrimSpace(r.Header.Get(HeaderPrincipal))

		ctx := context.WithValue(r.Context(), constants.ContextKeyRequestID, requestID)
		ctx = context.WithValue(ctx, constants.ContextKeyPrincipal, principal)
		ctx = metadata.AppendToOutgoingContext(ctx, constants.HeaderXRequestId, requestID)
		if principal != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, constants.HeaderXPrincipal, principal)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePrincipal rejects requests without an X-Principal header.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, _ := r.Context().Value(constants.ContextKeyPrincipal).(string); p == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthenticated","message":"X-Principal header is required"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
