package audit

import (
	"context"

	"github.com/google/uuid"
)

type requestInfoKey struct{}

// RequestInfo describes the caller of the current request.
type RequestInfo struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
	// Language is the caller's Accept-Language or preferred language.
	Language string
}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// ActorID returns the authenticated user of ctx, or uuid.Nil.
func ActorID(ctx context.Context) uuid.UUID {
	return RequestInfoFrom(ctx).UserID
}
