package testutil

import (
	"context"
	"net/http"

	id "copyroom/pkg/domain"
	"copyroom/pkg/requestcontext"
)

// WithCaller adds an authenticated caller to the request context, the way
// the auth middleware does for a valid bearer token. Invalid addresses are
// ignored so tests can exercise the unauthenticated path.
func WithCaller(req *http.Request, address string) *http.Request {
	caller, err := id.ParseAddress(address)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
