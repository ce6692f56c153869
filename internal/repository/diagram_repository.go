package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/models"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope narrows list and search results to what a non-elevated caller may
// see. A nil Scope means no narrowing.
type Scope struct {
	UserID uuid.UUID
	Roles  []string
	// IncludeShared widens the owner-only view to public diagrams and to
	// diagrams granted to the user or one of their roles.
	IncludeShared bool
}

// DiagramFilter holds the optional equality filters for List.
type DiagramFilter struct {
	DiagramType string
	IsPublic    *bool
	OwnerID     *uuid.UUID
	CategoryID  *uuid.UUID
	Tag         string
}

// ShareBatch is applied by ApplyShares as one unit. Public, when set, also
// stamps the modifier.
type ShareBatch struct {
	Grants []models.DiagramShare
	Roles  []string
	Public bool
	By     uuid.UUID
	At     time.Time
}

// TypeCount is one row of the per-type statistics.
type TypeCount struct {
	DiagramType string `json:"diagram_type"`
	Count       int64  `json:"count"`
}

type DiagramRepository interface {
	BaseRepository[models.Diagram]
	List(ctx context.Context, filter DiagramFilter, scope *Scope, limit, offset int) ([]models.Diagram, error)
	Search(ctx context.Context, query string, scope *Scope, limit int) ([]models.Diagram, error)
	UpsertShare(ctx context.Context, share *models.DiagramShare) error
	ApplyShares(ctx context.Context, diagramID uuid.UUID, batch ShareBatch) error
	DeleteShare(ctx context.Context, diagramID, userID uuid.UUID) error
	SetPublic(ctx context.Context, diagramID uuid.UUID, public bool, by uuid.UUID, at time.Time) error
	Count(ctx context.Context) (int64, error)
	CountByType(ctx context.Context) ([]TypeCount, error)
	ModifiedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type diagramRepository struct {
	BaseRepository[models.Diagram]
	db *gorm.DB
}

func NewDiagramRepository(db *gorm.DB) DiagramRepository {
	return &diagramRepository{BaseRepository: NewBaseRepository[models.Diagram](db, "diagram"), db: db}
}

var summaryColumns = []string{"id", "title", "diagram_type", "owner_id", "is_public", "category_id", "modified_at"}

// Create inserts the diagram row and its tag links. Shares are never
// created implicitly.
func (r *diagramRepository) Create(ctx context.Context, d *models.Diagram) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(d).Error; err != nil {
			return err
		}
		return replaceTags(tx, d)
	})
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create diagram failed")
	}
	return nil
}

// GetByID loads the diagram with its grants and tags.
func (r *diagramRepository) GetByID(ctx context.Context, id any, dest *models.Diagram) error {
	err := r.db.WithContext(ctx).
		Preload("Shares").
		Preload("RoleShares").
		Preload("Tags").
		First(dest, "id = ?", id).Error
	if err != nil {
		return notFoundOr(err, "diagram")
	}
	return nil
}

// Update writes every column of an existing row and replaces the tag links
// with d.Tags. A row deleted since it was loaded stays deleted.
func (r *diagramRepository) Update(ctx context.Context, d *models.Diagram) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(d).Select("*").Omit(clause.Associations).Updates(d)
		if res.Error != nil {
			return appErr.Wrap(res.Error, appErr.CodeInternal, "update diagram failed")
		}
		if res.RowsAffected == 0 {
			return appErr.NotFound("diagram not found")
		}
		if err := replaceTags(tx, d); err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "update diagram tags failed")
		}
		return nil
	})
	return err
}

// Delete removes the diagram together with its grants and tag links.
func (r *diagramRepository) Delete(ctx context.Context, id any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("diagram_id = ?", id).Delete(&models.DiagramShare{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete diagram shares failed")
		}
		if err := tx.Where("diagram_id = ?", id).Delete(&models.DiagramRoleShare{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete diagram role shares failed")
		}
		if err := tx.Exec("DELETE FROM diagram_tags WHERE diagram_id = ?", id).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete diagram tags failed")
		}
		return NewBaseRepository[models.Diagram](tx, "diagram").Delete(ctx, id)
	})
}

func (r *diagramRepository) List(ctx context.Context, filter DiagramFilter, scope *Scope, limit, offset int) ([]models.Diagram, error) {
	q := r.summaryQuery(ctx, scope)
	if filter.DiagramType != "" {
		q = q.Where("diagram_type = ?", filter.DiagramType)
	}
	if filter.IsPublic != nil {
		q = q.Where("is_public = ?", *filter.IsPublic)
	}
	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Tag != "" {
		q = q.Where("id IN (?)", r.db.Table("diagram_tags").
			Select("diagram_tags.diagram_id").
			Joins("JOIN tags ON tags.id = diagram_tags.tag_id").
			Where("tags.name_key = ?", models.LabelKey(filter.Tag)))
	}

	var out []models.Diagram
	if err := q.Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list diagrams failed")
	}
	return out, nil
}

// Search matches query case-insensitively as a literal substring of the
// title or the source text.
func (r *diagramRepository) Search(ctx context.Context, query string, scope *Scope, limit int) ([]models.Diagram, error) {
	q := r.summaryQuery(ctx, scope)
	if query != "" {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(source_text) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	var out []models.Diagram
	if err := q.Limit(limit).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "search diagrams failed")
	}
	return out, nil
}

func (r *diagramRepository) summaryQuery(ctx context.Context, scope *Scope) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Diagram{}).Select(summaryColumns).Order("modified_at DESC").Order("id")
	if scope == nil {
		return q
	}
	if !scope.IncludeShared {
		return q.Where("owner_id = ?", scope.UserID)
	}

	visible := r.db.Where("owner_id = ?", scope.UserID).
		Or("is_public = ?", true).
		Or("id IN (?)", r.db.Model(&models.DiagramShare{}).Select("diagram_id").Where("user_id = ?", scope.UserID))
	if len(scope.Roles) > 0 {
		visible = visible.Or("id IN (?)", r.db.Model(&models.DiagramRoleShare{}).Select("diagram_id").Where("role IN ?", scope.Roles))
	}
	return q.Where(visible)
}

func (r *diagramRepository) UpsertShare(ctx context.Context, share *models.DiagramShare) error {
	if err := upsertShare(r.db.WithContext(ctx), share); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "grant diagram access failed")
	}
	return nil
}

// ApplyShares writes the user grants, role grants and visibility of a share
// request in one transaction.
func (r *diagramRepository) ApplyShares(ctx context.Context, diagramID uuid.UUID, batch ShareBatch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range batch.Grants {
			g := batch.Grants[i]
			g.DiagramID = diagramID
			if err := upsertShare(tx, &g); err != nil {
				return appErr.Wrap(err, appErr.CodeInternal, "grant diagram access failed")
			}
		}
		if err := insertRoleShares(tx, diagramID, batch.Roles); err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "share diagram with roles failed")
		}
		if !batch.Public {
			return nil
		}
		return setPublic(tx, diagramID, true, batch.By, batch.At)
	})
}

func upsertShare(tx *gorm.DB, share *models.DiagramShare) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "diagram_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission"}),
	}).Create(share).Error
}

func (r *diagramRepository) DeleteShare(ctx context.Context, diagramID, userID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("diagram_id = ? AND user_id = ?", diagramID, userID).
		Delete(&models.DiagramShare{}).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "revoke diagram access failed")
	}
	return nil
}

func insertRoleShares(tx *gorm.DB, diagramID uuid.UUID, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	rows := make([]models.DiagramRoleShare, 0, len(roles))
	for _, role := range roles {
		rows = append(rows, models.DiagramRoleShare{DiagramID: diagramID, Role: role})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *diagramRepository) SetPublic(ctx context.Context, diagramID uuid.UUID, public bool, by uuid.UUID, at time.Time) error {
	return setPublic(r.db.WithContext(ctx), diagramID, public, by, at)
}

func setPublic(tx *gorm.DB, diagramID uuid.UUID, public bool, by uuid.UUID, at time.Time) error {
	res := tx.Model(&models.Diagram{}).Where("id = ?", diagramID).Updates(map[string]any{
		"is_public":   public,
		"modified_by": by,
		"modified_at": at,
	})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "set diagram visibility failed")
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound("diagram not found")
	}
	return nil
}

func (r *diagramRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Diagram{}).Count(&n).Error; err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "count diagrams failed")
	}
	return n, nil
}

func (r *diagramRepository) CountByType(ctx context.Context) ([]TypeCount, error) {
	var out []TypeCount
	err := r.db.WithContext(ctx).Model(&models.Diagram{}).
		Select("diagram_type, COUNT(*) AS count").
		Group("diagram_type").
		Order("count DESC").Order("diagram_type").
		Scan(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "count diagrams by type failed")
	}
	return out, nil
}

// ModifiedSince returns the modification time of every diagram written at or
// after since. Bucketing by day happens in the caller so the query stays
// portable across dialects.
func (r *diagramRepository) ModifiedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var out []time.Time
	err := r.db.WithContext(ctx).Model(&models.Diagram{}).
		Where("modified_at >= ?", since).
		Order("modified_at DESC").
		Pluck("modified_at", &out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "load recent diagram activity failed")
	}
	return out, nil
}

func replaceTags(tx *gorm.DB, d *models.Diagram) error {
	assoc := tx.Model(d).Association("Tags")
	if len(d.Tags) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(d.Tags)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
