package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/internal/repository"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// LabelService manages categories and tags. Names are unique per kind,
// compared trimmed and case-insensitively.
type LabelService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, input *CategoryInput) (*models.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input *CategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	ListTags(ctx context.Context) ([]models.Tag, error)
	CreateTag(ctx context.Context, name string) (*models.Tag, error)
	UpdateTag(ctx context.Context, id uuid.UUID, name string) (*models.Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) error
}

type CategoryInput struct {
	Name        string
	Description string
}

type labelService struct {
	categoryRepo repository.CategoryRepository
	tagRepo      repository.TagRepository
}

func NewLabelService(categoryRepo repository.CategoryRepository, tagRepo repository.TagRepository) LabelService {
	return &labelService{categoryRepo: categoryRepo, tagRepo: tagRepo}
}

var _ LabelService = (*labelService)(nil)

func (s *labelService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *labelService) CreateCategory(ctx context.Context, input *CategoryInput) (*models.Category, error) {
	logger.L().Info("create category", zap.String("name", input.Name))
	name, err := checkLabelName[models.Category](ctx, s.categoryRepo, "category", input.Name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	c := &models.Category{Name: name, Description: input.Description}
	if err := s.categoryRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	logger.L().Info("category created", zap.String("category_id", c.ID.String()))
	return c, nil
}

func (s *labelService) UpdateCategory(ctx context.Context, id uuid.UUID, input *CategoryInput) (*models.Category, error) {
	logger.L().Info("update category", zap.String("category_id", id.String()))
	var c models.Category
	if err := s.categoryRepo.GetByID(ctx, id, &c); err != nil {
		return nil, err
	}
	name, err := checkLabelName[models.Category](ctx, s.categoryRepo, "category", input.Name, id)
	if err != nil {
		return nil, err
	}
	c.Name = name
	c.Description = input.Description
	if err := s.categoryRepo.Update(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *labelService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	logger.L().Info("delete category", zap.String("category_id", id.String()))
	return s.categoryRepo.Delete(ctx, id)
}

func (s *labelService) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.tagRepo.List(ctx)
}

func (s *labelService) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	logger.L().Info("create tag", zap.String("name", name))
	name, err := checkLabelName[models.Tag](ctx, s.tagRepo, "tag", name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	t := &models.Tag{Name: name}
	if err := s.tagRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	logger.L().Info("tag created", zap.String("tag_id", t.ID.String()))
	return t, nil
}

func (s *labelService) UpdateTag(ctx context.Context, id uuid.UUID, name string) (*models.Tag, error) {
	logger.L().Info("update tag", zap.String("tag_id", id.String()))
	var t models.Tag
	if err := s.tagRepo.GetByID(ctx, id, &t); err != nil {
		return nil, err
	}
	name, err := checkLabelName[models.Tag](ctx, s.tagRepo, "tag", name, id)
	if err != nil {
		return nil, err
	}
	t.Name = name
	if err := s.tagRepo.Update(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *labelService) DeleteTag(ctx context.Context, id uuid.UUID) error {
	logger.L().Info("delete tag", zap.String("tag_id", id.String()))
	return s.tagRepo.Delete(ctx, id)
}

// checkLabelName trims name and rejects it when empty or already used by
// another label of the same kind.
func checkLabelName[T any](ctx context.Context, repo repository.LabelRepository[T], entity, name string, self uuid.UUID) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", appErr.Validation(entity+" name is required").WithMeta("field", "name")
	}
	taken, err := repo.NameTaken(ctx, models.LabelKey(name), self)
	if err != nil {
		return "", err
	}
	if taken {
		return "", appErr.Newf(appErr.CodeInvalid, "%s %q already exists", entity, name).WithMeta("field", "name")
	}
	return name, nil
}
