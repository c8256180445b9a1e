// Package tenant carries the active organization through a unit of work.
//
// The organization lives on the context.Context of the request or job. It is
// never inherited across a dispatch boundary: a background worker receives
// the organization ID as plain data and establishes it again with WithOrg.
package tenant

import (
	"context"

	"gorm.io/gorm"

	apperrors "backoffice/internal/errors"
)

type orgKey struct{}

// WithOrg returns a copy of ctx scoped to orgID. An empty orgID clears the scope.
func WithOrg(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey{}, orgID)
}

// OrgID returns the organization set on ctx.
func OrgID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(orgKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Require returns the organization set on ctx or ErrMissingTenantContext.
func Require(ctx context.Context) (string, error) {
	id, ok := OrgID(ctx)
	if !ok {
		return "", apperrors.ErrMissingTenantContext
	}
	return id, nil
}

// Run calls fn with a context scoped to orgID. The caller's ctx keeps its
// own organization, so the previous scope is back in effect once fn
// returns or panics, and calls nest freely.
func Run(ctx context.Context, orgID string, fn func(ctx context.Context) error) error {
	return fn(WithOrg(ctx, orgID))
}

// Scope returns a GORM scope restricting a query to rows of orgID.
func Scope(orgID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("organization_id = ?", orgID)
	}
}

// DB returns db restricted to the organization on ctx. The result is a
// fresh session and can be reused for several queries.
func DB(ctx context.Context, db *gorm.DB) (*gorm.DB, string, error) {
	orgID, err := Require(ctx)
	if err != nil {
		return nil, "", err
	}
	return db.WithContext(ctx).Scopes(Scope(orgID)).Session(&gorm.Session{}), orgID, nil
}

type actorKey struct{}

// WithActor records who is acting, for audit events.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// Actor returns the actor set on ctx, or "".
func Actor(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
