package actor

import "context"

type contextKey struct{}

// Request identifies the query being answered and who asked it.
type Request struct {
	QueryID string
	UserID  string
}

// WithRequest returns a context that carries the given request identity.
// Use FromContext to retrieve it. Outbound calls copy QueryID into a
// correlation header so the web app can join its logs with ours.
func WithRequest(ctx context.Context, req Request) context.Context {
	if req.QueryID == "" && req.UserID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, req)
}

// FromContext returns the request identity, or the zero Request if not set.
func FromContext(ctx context.Context) Request {
	if ctx == nil {
		return Request{}
	}
	v, _ := ctx.Value(contextKey{}).(Request)
	return v
}

// QueryID is shorthand for FromContext(ctx).QueryID.
func QueryID(ctx context.Context) string {
	return FromContext(ctx).QueryID
}
