package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/models"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"gorm.io/gorm"
)

// LabelRepository stores categories or tags. Names are unique per entity by
// their normalised key.
type LabelRepository[T any] interface {
	BaseRepository[T]
	List(ctx context.Context) ([]T, error)
	NameTaken(ctx context.Context, nameKey string, excludeID uuid.UUID) (bool, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]T, error)
}

type CategoryRepository interface {
	LabelRepository[models.Category]
}

type TagRepository interface {
	LabelRepository[models.Tag]
}

type labelRepository[T any] struct {
	BaseRepository[T]
	db     *gorm.DB
	entity string
}

type categoryRepository struct {
	*labelRepository[models.Category]
}

type tagRepository struct {
	*labelRepository[models.Tag]
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{newLabelRepository[models.Category](db, "category")}
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{newLabelRepository[models.Tag](db, "tag")}
}

func newLabelRepository[T any](db *gorm.DB, entity string) *labelRepository[T] {
	return &labelRepository[T]{BaseRepository: NewBaseRepository[T](db, entity), db: db, entity: entity}
}

func (r *labelRepository[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := r.db.WithContext(ctx).Order("name_key ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list "+r.entity+" failed")
	}
	return out, nil
}

func (r *labelRepository[T]) NameTaken(ctx context.Context, nameKey string, excludeID uuid.UUID) (bool, error) {
	var t T
	var n int64
	err := r.db.WithContext(ctx).Model(&t).
		Where("name_key = ? AND id <> ?", nameKey, excludeID).
		Count(&n).Error
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "check "+r.entity+" name failed")
	}
	return n > 0, nil
}

func (r *labelRepository[T]) GetMany(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	var out []T
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get "+r.entity+" failed")
	}
	if len(out) != len(uniqueIDs(ids)) {
		return nil, appErr.NotFound("one or more " + r.entity + " ids not found")
	}
	return out, nil
}

// Delete removes the label and detaches it from every diagram in one
// transaction.
func (r *categoryRepository) Delete(ctx context.Context, id any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Diagram{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "detach category failed")
		}
		return NewBaseRepository[models.Category](tx, "category").Delete(ctx, id)
	})
}

func (r *tagRepository) Delete(ctx context.Context, id any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM diagram_tags WHERE tag_id = ?", id).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "detach tag failed")
		}
		return NewBaseRepository[models.Tag](tx, "tag").Delete(ctx, id)
	})
}

func uniqueIDs(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
