package model

import (
	"context"
)

// ContextManager moves the authenticated session identity through request
// contexts.
type ContextManager interface {
	SetSessionToContext(ctx context.Context, session Session) context.Context
	GetSessionFromContext(ctx context.Context) (Session, bool)
}
