package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/access"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/internal/realtime"
	"github.com/mermaid-studio/engine/internal/repository"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// SharingService manages visibility and per-user or per-role grants.
type SharingService interface {
	SetPublic(ctx context.Context, p access.Principal, id uuid.UUID, public bool) (*models.Diagram, error)
	Grant(ctx context.Context, p access.Principal, id, userID uuid.UUID, level string) error
	Revoke(ctx context.Context, p access.Principal, id, userID uuid.UUID) error
	Share(ctx context.Context, p access.Principal, id uuid.UUID, input *ShareInput) (*models.Diagram, error)
}

// ShareInput grants write access to Users and read access to holders of
// Roles. Public, when true, also makes the diagram public.
type ShareInput struct {
	Users  []uuid.UUID
	Roles  []string
	Public bool
}

type sharingService struct {
	diagramRepo repository.DiagramRepository
	checker     access.Checker
	notifier    realtime.Notifier
	now         func() time.Time
}

func NewSharingService(diagramRepo repository.DiagramRepository, checker access.Checker, notifier realtime.Notifier, opts ...Option) SharingService {
	return &sharingService{diagramRepo: diagramRepo, checker: checker, notifier: notifier, now: applyOptions(opts).now}
}

var _ SharingService = (*sharingService)(nil)

func (s *sharingService) SetPublic(ctx context.Context, p access.Principal, id uuid.UUID, public bool) (*models.Diagram, error) {
	logger.L().Info("set diagram visibility", zap.String("diagram_id", id.String()), zap.Bool("public", public))
	if _, err := s.authorize(ctx, p, id); err != nil {
		return nil, err
	}
	if err := s.diagramRepo.SetPublic(ctx, id, public, p.UserID, s.now()); err != nil {
		return nil, err
	}
	return s.reloadAndNotify(ctx, id)
}

func (s *sharingService) Grant(ctx context.Context, p access.Principal, id, userID uuid.UUID, level string) error {
	if level == "" {
		level = models.PermissionRead
	}
	logger.L().Info("grant diagram access",
		zap.String("diagram_id", id.String()),
		zap.String("grantee_id", userID.String()),
		zap.String("permission", level),
	)
	if !models.ValidPermission(level) {
		return appErr.Validation("unknown permission level").WithMeta("permission", level)
	}
	if userID == uuid.Nil {
		return appErr.Validation("user id is required").WithMeta("field", "user_id")
	}
	if _, err := s.authorize(ctx, p, id); err != nil {
		return err
	}
	return s.diagramRepo.UpsertShare(ctx, &models.DiagramShare{DiagramID: id, UserID: userID, Permission: level})
}

// Revoke is a no-op when userID holds no grant.
func (s *sharingService) Revoke(ctx context.Context, p access.Principal, id, userID uuid.UUID) error {
	logger.L().Info("revoke diagram access", zap.String("diagram_id", id.String()), zap.String("grantee_id", userID.String()))
	if _, err := s.authorize(ctx, p, id); err != nil {
		return err
	}
	return s.diagramRepo.DeleteShare(ctx, id, userID)
}

func (s *sharingService) Share(ctx context.Context, p access.Principal, id uuid.UUID, input *ShareInput) (*models.Diagram, error) {
	logger.L().Info("share diagram",
		zap.String("diagram_id", id.String()),
		zap.Int("users", len(input.Users)),
		zap.Int("roles", len(input.Roles)),
		zap.Bool("public", input.Public),
	)
	if _, err := s.authorize(ctx, p, id); err != nil {
		return nil, err
	}

	batch := repository.ShareBatch{
		Roles:  cleanRoles(input.Roles),
		Public: input.Public,
		By:     p.UserID,
		At:     s.now(),
	}
	for _, uid := range input.Users {
		if uid == uuid.Nil {
			continue
		}
		batch.Grants = append(batch.Grants, models.DiagramShare{UserID: uid, Permission: models.PermissionWrite})
	}
	if err := s.diagramRepo.ApplyShares(ctx, id, batch); err != nil {
		return nil, err
	}

	if !input.Public {
		var d models.Diagram
		if err := s.diagramRepo.GetByID(ctx, id, &d); err != nil {
			return nil, err
		}
		return &d, nil
	}
	return s.reloadAndNotify(ctx, id)
}

func (s *sharingService) authorize(ctx context.Context, p access.Principal, id uuid.UUID) (*models.Diagram, error) {
	var d models.Diagram
	if err := s.diagramRepo.GetByID(ctx, id, &d); err != nil {
		return nil, err
	}
	if err := access.Require(s.checker.CanShare(p, &d), "share", &d); err != nil {
		logger.L().Warn("diagram share denied", zap.String("diagram_id", id.String()), zap.String("user_id", p.UserID.String()))
		return nil, err
	}
	return &d, nil
}

func (s *sharingService) reloadAndNotify(ctx context.Context, id uuid.UUID) (*models.Diagram, error) {
	var d models.Diagram
	if err := s.diagramRepo.GetByID(ctx, id, &d); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, &d, realtime.EventUpdated)
	return &d, nil
}

func cleanRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
