// Package access decides what a caller may do with a diagram.
package access

import (
	"context"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/models"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID  uuid.UUID
	IsAdmin bool
	Roles   []string
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Checker evaluates per-diagram capabilities. Implementations expect the
// diagram to carry its Shares and RoleShares.
type Checker interface {
	CanRead(p Principal, d *models.Diagram) bool
	CanWrite(p Principal, d *models.Diagram) bool
	CanShare(p Principal, d *models.Diagram) bool
	CanDelete(p Principal, d *models.Diagram) bool
}

// DefaultChecker implements the ownership, visibility and grant rules.
type DefaultChecker struct{}

var _ Checker = DefaultChecker{}

func (DefaultChecker) CanRead(p Principal, d *models.Diagram) bool {
	if p.IsAdmin || d.IsPublic || d.OwnerID == p.UserID {
		return true
	}
	if _, ok := d.ShareFor(p.UserID); ok {
		return true
	}
	return d.SharedWithRole(p.Roles)
}

func (DefaultChecker) CanWrite(p Principal, d *models.Diagram) bool {
	if p.IsAdmin || d.OwnerID == p.UserID {
		return true
	}
	s, ok := d.ShareFor(p.UserID)
	return ok && (s.Permission == models.PermissionWrite || s.Permission == models.PermissionShare)
}

func (DefaultChecker) CanShare(p Principal, d *models.Diagram) bool {
	if p.IsAdmin || d.OwnerID == p.UserID {
		return true
	}
	s, ok := d.ShareFor(p.UserID)
	return ok && s.Permission == models.PermissionShare
}

func (DefaultChecker) CanDelete(p Principal, d *models.Diagram) bool {
	return p.IsAdmin || d.OwnerID == p.UserID
}

// Require returns a forbidden error naming action when allowed is false.
func Require(allowed bool, action string, d *models.Diagram) error {
	if allowed {
		return nil
	}
	return appErr.Forbidden("not permitted to "+action+" this diagram").WithMeta("diagram_id", d.ID.String())
}
