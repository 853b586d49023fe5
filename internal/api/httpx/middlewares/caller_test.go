package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"

	"github.com/jcmexdev/shoe-market/internal/pkg/interceptors"
	"github.com/jcmexdev/shoe-market/internal/pkg/interceptors/constants"
)

func TestAttachCallerMetadata(t *testing.T) {
	var principal, requestID string
	var md metadata.MD
	h := middleware.RequestID(AttachCallerMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		principal = interceptors.GetPrincipal(r.Context())
		requestID = interceptors.GetRequestID(r.Context())
		md, _ = metadata.FromOutgoingContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderPrincipal, " alice ")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "alice", principal)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, []string{"alice"}, md.Get(constants.HeaderXPrincipal))
	assert.Equal(t, []string{requestID}, md.Get(constants.HeaderXRequestId))
}

func TestRequirePrincipal(t *testing.T) {
	h := AttachCallerMetadata(RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderPrincipal, "bob")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
