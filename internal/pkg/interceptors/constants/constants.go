package constants

// contextKey is an unexported type for context keys in this package.
// Using a custom type prevents collisions with keys from other packages
// that might use the same underlying string value.
type contextKey string

const (
	HeaderXRequestId = "x-request-id"
	HeaderXPrincipal = "x-principal"

	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID contextKey = HeaderXRequestId
	// ContextKeyPrincipal is the context key for the calling principal.
	ContextKeyPrincipal contextKey = HeaderXPrincipal
)
