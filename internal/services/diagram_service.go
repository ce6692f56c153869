package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/access"
	"github.com/mermaid-studio/engine/internal/mermaid"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/internal/realtime"
	"github.com/mermaid-studio/engine/internal/repository"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultTitle = "Untitled Diagram"

	DefaultListLimit   = 20
	DefaultSearchLimit = 10
	MaxPageLimit       = 100

	MaxTitleLength  = 255
	copySuffix      = " (Copy)"
	statsWindowDays = 30
)

// NoticeUnknownKeyword is attached to a saved diagram whose first line does
// not open with a recognised Mermaid keyword.
const NoticeUnknownKeyword = "diagram source does not start with a recognized Mermaid keyword"

// Service interface and related DTOs
type DiagramService interface {
	Create(ctx context.Context, p access.Principal, input *CreateDiagramInput) (*SaveResult, error)
	Get(ctx context.Context, p access.Principal, id uuid.UUID) (*models.Diagram, error)
	Update(ctx context.Context, p access.Principal, id uuid.UUID, input *UpdateDiagramInput) (*SaveResult, error)
	UpdateContent(ctx context.Context, p access.Principal, id uuid.UUID, input *UpdateContentInput) (*SaveResult, error)
	List(ctx context.Context, p access.Principal, filters *DiagramFilters) ([]models.DiagramSummary, error)
	Search(ctx context.Context, p access.Principal, query string, limit int, includeShared bool) ([]models.DiagramSummary, error)
	Duplicate(ctx context.Context, p access.Principal, id uuid.UUID, newTitle string) (*models.Diagram, error)
	Delete(ctx context.Context, p access.Principal, id uuid.UUID) error
	Export(ctx context.Context, p access.Principal, id uuid.UUID, format string) (*ExportResult, error)
	Stats(ctx context.Context, p access.Principal) (*DiagramStats, error)
}

type CreateDiagramInput struct {
	Title         string
	DiagramType   string
	SourceText    string
	Description   string
	RenderedImage string
	CategoryID    *uuid.UUID
	TagIDs        []uuid.UUID
}

// UpdateDiagramInput merges only the non-nil fields. TagIDs replaces the
// tag set when non-nil; an empty slice clears it.
type UpdateDiagramInput struct {
	Title         *string
	DiagramType   *string
	SourceText    *string
	Description   *string
	RenderedImage *string
	CategoryID    *uuid.UUID
	ClearCategory bool
	TagIDs        []uuid.UUID
}

type UpdateContentInput struct {
	SourceText    string
	RenderedImage *string
}

type DiagramFilters struct {
	DiagramType   string
	IsPublic      *bool
	OwnerID       *uuid.UUID
	CategoryID    *uuid.UUID
	Tag           string
	IncludeShared bool
	Limit         int
	Offset        int
}

// SaveResult is a persisted diagram plus the advisory notices raised while
// validating it.
type SaveResult struct {
	Diagram *models.Diagram
	Notices []string
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type DiagramStats struct {
	Total       int64                  `json:"total"`
	ByType      []repository.TypeCount `json:"by_type"`
	RecentByDay []DayCount             `json:"recent_by_day"`
}

type diagramService struct {
	diagramRepo  repository.DiagramRepository
	categoryRepo repository.CategoryRepository
	tagRepo      repository.TagRepository
	checker      access.Checker
	notifier     realtime.Notifier
	now          func() time.Time
}

// Option customises the diagram and sharing services.
type Option func(*serviceOptions)

type serviceOptions struct {
	now func() time.Time
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

func applyOptions(opts []Option) serviceOptions {
	o := serviceOptions{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewDiagramService(
	diagramRepo repository.DiagramRepository,
	categoryRepo repository.CategoryRepository,
	tagRepo repository.TagRepository,
	checker access.Checker,
	notifier realtime.Notifier,
	opts ...Option,
) DiagramService {
	return &diagramService{
		diagramRepo:  diagramRepo,
		categoryRepo: categoryRepo,
		tagRepo:      tagRepo,
		checker:      checker,
		notifier:     notifier,
		now:          applyOptions(opts).now,
	}
}

// Ensure interfaces are satisfied at compile time
var _ DiagramService = (*diagramService)(nil)

func (s *diagramService) Create(ctx context.Context, p access.Principal, input *CreateDiagramInput) (*SaveResult, error) {
	logger.L().Info("create diagram called", zap.String("user_id", p.UserID.String()), zap.String("title", input.Title))

	now := s.now()
	d := &models.Diagram{
		Title:         input.Title,
		DiagramType:   input.DiagramType,
		SourceText:    input.SourceText,
		Description:   input.Description,
		RenderedImage: input.RenderedImage,
		OwnerID:       p.UserID,
		ModifiedBy:    p.UserID,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	if err := s.attachLabels(ctx, d, input.CategoryID, input.TagIDs); err != nil {
		return nil, err
	}

	notices, err := validateDiagram(d)
	if err != nil {
		return nil, err
	}
	if err := s.diagramRepo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, d, realtime.EventCreated)
	logger.L().Info("diagram created",
		zap.String("diagram_id", d.ID.String()),
		zap.String("user_id", p.UserID.String()),
		zap.String("diagram_type", d.DiagramType),
	)
	return &SaveResult{Diagram: d, Notices: notices}, nil
}

func (s *diagramService) Get(ctx context.Context, p access.Principal, id uuid.UUID) (*models.Diagram, error) {
	logger.L().Info("get diagram", zap.String("diagram_id", id.String()), zap.String("user_id", p.UserID.String()))
	return s.load(ctx, p, id, "read", s.checker.CanRead)
}

func (s *diagramService) Update(ctx context.Context, p access.Principal, id uuid.UUID, input *UpdateDiagramInput) (*SaveResult, error) {
	logger.L().Info("update diagram", zap.String("diagram_id", id.String()), zap.String("user_id", p.UserID.String()))
	d, err := s.load(ctx, p, id, "update", s.checker.CanWrite)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		d.Title = *input.Title
	}
	if input.SourceText != nil {
		d.SourceText = *input.SourceText
	}
	if input.DiagramType != nil {
		d.DiagramType = *input.DiagramType
	}
	if input.Description != nil {
		d.Description = *input.Description
	}
	if input.RenderedImage != nil {
		d.RenderedImage = *input.RenderedImage
	}

	categoryID := d.CategoryID
	if input.ClearCategory {
		categoryID = nil
	} else if input.CategoryID != nil {
		categoryID = input.CategoryID
	}
	tagIDs := tagIDsOf(d.Tags)
	if input.TagIDs != nil {
		tagIDs = input.TagIDs
	}
	if err := s.attachLabels(ctx, d, categoryID, tagIDs); err != nil {
		return nil, err
	}

	return s.save(ctx, p, d)
}

func (s *diagramService) UpdateContent(ctx context.Context, p access.Principal, id uuid.UUID, input *UpdateContentInput) (*SaveResult, error) {
	logger.L().Info("update diagram content", zap.String("diagram_id", id.String()), zap.String("user_id", p.UserID.String()))
	d, err := s.load(ctx, p, id, "update", s.checker.CanWrite)
	if err != nil {
		return nil, err
	}

	d.SourceText = input.SourceText
	if input.RenderedImage != nil {
		d.RenderedImage = *input.RenderedImage
	}
	return s.save(ctx, p, d)
}

func (s *diagramService) List(ctx context.Context, p access.Principal, filters *DiagramFilters) ([]models.DiagramSummary, error) {
	if filters == nil {
		filters = &DiagramFilters{}
	}
	logger.L().Info("list diagrams", zap.String("user_id", p.UserID.String()), zap.Bool("include_shared", filters.IncludeShared))

	f := repository.DiagramFilter{
		IsPublic:   filters.IsPublic,
		OwnerID:    filters.OwnerID,
		CategoryID: filters.CategoryID,
		Tag:        filters.Tag,
	}
	if filters.DiagramType != "" {
		t, ok := mermaid.ParseDiagramType(filters.DiagramType)
		if !ok {
			return nil, appErr.Validation("unknown diagram type").WithMeta("diagram_type", filters.DiagramType)
		}
		f.DiagramType = t.String()
	}

	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.diagramRepo.List(ctx, f, scopeFor(p, filters.IncludeShared), clampLimit(filters.Limit, DefaultListLimit), offset)
	if err != nil {
		return nil, err
	}
	return summaries(rows), nil
}

// Search matches query case-insensitively against title and source. It
// narrows the same way List does.
func (s *diagramService) Search(ctx context.Context, p access.Principal, query string, limit int, includeShared bool) ([]models.DiagramSummary, error) {
	logger.L().Info("search diagrams", zap.String("user_id", p.UserID.String()), zap.String("query", query))
	rows, err := s.diagramRepo.Search(ctx, query, scopeFor(p, includeShared), clampLimit(limit, DefaultSearchLimit))
	if err != nil {
		return nil, err
	}
	return summaries(rows), nil
}

func (s *diagramService) Duplicate(ctx context.Context, p access.Principal, id uuid.UUID, newTitle string) (*models.Diagram, error) {
	logger.L().Info("duplicate diagram", zap.String("diagram_id", id.String()), zap.String("user_id", p.UserID.String()))
	src, err := s.load(ctx, p, id, "read", s.checker.CanRead)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(newTitle)
	if title == "" {
		title = copyTitle(src.Title)
	}
	now := s.now()
	cp := &models.Diagram{
		Title:         title,
		DiagramType:   src.DiagramType,
		SourceText:    src.SourceText,
		Description:   src.Description,
		RenderedImage: src.RenderedImage,
		CategoryID:    src.CategoryID,
		Tags:          append([]models.Tag(nil), src.Tags...),
		IsPublic:      false,
		OwnerID:       p.UserID,
		ModifiedBy:    p.UserID,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	if err := s.diagramRepo.Create(ctx, cp); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, cp, realtime.EventCreated)
	logger.L().Info("diagram duplicated",
		zap.String("source_id", src.ID.String()),
		zap.String("diagram_id", cp.ID.String()),
		zap.String("user_id", p.UserID.String()),
	)
	return cp, nil
}

func (s *diagramService) Delete(ctx context.Context, p access.Principal, id uuid.UUID) error {
	logger.L().Info("delete diagram", zap.String("diagram_id", id.String()), zap.String("user_id", p.UserID.String()))
	if _, err := s.load(ctx, p, id, "delete", s.checker.CanDelete); err != nil {
		return err
	}
	if err := s.diagramRepo.Delete(ctx, id); err != nil {
		return err
	}
	logger.L().Info("diagram deleted", zap.String("diagram_id", id.String()), zap.String("user_id", p.UserID.String()))
	return nil
}

func (s *diagramService) Export(ctx context.Context, p access.Principal, id uuid.UUID, format string) (*ExportResult, error) {
	logger.L().Info("export diagram", zap.String("diagram_id", id.String()), zap.String("format", format))
	d, err := s.load(ctx, p, id, "read", s.checker.CanRead)
	if err != nil {
		return nil, err
	}
	return ExportDiagram(d, format)
}

// Stats aggregates over every stored diagram regardless of the caller.
func (s *diagramService) Stats(ctx context.Context, p access.Principal) (*DiagramStats, error) {
	logger.L().Info("diagram stats", zap.String("user_id", p.UserID.String()))
	total, err := s.diagramRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := s.diagramRepo.CountByType(ctx)
	if err != nil {
		return nil, err
	}

	today := truncateDay(s.now())
	since := today.AddDate(0, 0, -(statsWindowDays - 1))
	stamps, err := s.diagramRepo.ModifiedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	return &DiagramStats{
		Total:       total,
		ByType:      nonNil(byType),
		RecentByDay: bucketByDay(stamps, statsWindowDays),
	}, nil
}

// load fetches the diagram and applies the capability check. The repository
// lookup itself does no authorization.
func (s *diagramService) load(ctx context.Context, p access.Principal, id uuid.UUID, action string, can func(access.Principal, *models.Diagram) bool) (*models.Diagram, error) {
	var d models.Diagram
	if err := s.diagramRepo.GetByID(ctx, id, &d); err != nil {
		return nil, err
	}
	if err := access.Require(can(p, &d), action, &d); err != nil {
		logger.L().Warn("diagram access denied",
			zap.String("diagram_id", id.String()),
			zap.String("user_id", p.UserID.String()),
			zap.String("action", action),
		)
		return nil, err
	}
	return &d, nil
}

func (s *diagramService) save(ctx context.Context, p access.Principal, d *models.Diagram) (*SaveResult, error) {
	notices, err := validateDiagram(d)
	if err != nil {
		return nil, err
	}
	d.ModifiedBy = p.UserID
	d.ModifiedAt = s.now()
	if err := s.diagramRepo.Update(ctx, d); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, d, realtime.EventUpdated)
	logger.L().Info("diagram updated", zap.String("diagram_id", d.ID.String()), zap.String("user_id", p.UserID.String()))
	return &SaveResult{Diagram: d, Notices: notices}, nil
}

func (s *diagramService) attachLabels(ctx context.Context, d *models.Diagram, categoryID *uuid.UUID, tagIDs []uuid.UUID) error {
	if categoryID != nil {
		var c models.Category
		if err := s.categoryRepo.GetByID(ctx, *categoryID, &c); err != nil {
			if appErr.IsCode(err, appErr.CodeNotFound) {
				return appErr.Validation("unknown category").WithMeta("category_id", categoryID.String())
			}
			return err
		}
	}
	d.CategoryID = categoryID

	tags, err := s.tagRepo.GetMany(ctx, tagIDs)
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return appErr.Validation("unknown tag")
		}
		return err
	}
	d.Tags = tags
	return nil
}

// validateDiagram normalises d in place and returns advisory notices. An
// empty source or an unknown explicit type is rejected.
func validateDiagram(d *models.Diagram) ([]string, error) {
	if strings.TrimSpace(d.SourceText) == "" {
		return nil, appErr.Validation("diagram source text is required").WithMeta("field", "source_text")
	}

	if strings.TrimSpace(d.DiagramType) == "" {
		d.DiagramType = mermaid.Classify(d.SourceText).String()
	} else {
		t, ok := mermaid.ParseDiagramType(d.DiagramType)
		if !ok {
			return nil, appErr.Validation("unknown diagram type").WithMeta("diagram_type", d.DiagramType)
		}
		d.DiagramType = t.String()
	}

	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = DefaultTitle
	}

	var notices []string
	if !mermaid.HasKnownKeyword(d.SourceText) {
		notices = append(notices, NoticeUnknownKeyword)
	}
	return notices, nil
}

func scopeFor(p access.Principal, includeShared bool) *repository.Scope {
	if p.IsAdmin {
		return nil
	}
	return &repository.Scope{UserID: p.UserID, Roles: p.Roles, IncludeShared: includeShared}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

func summaries(rows []models.Diagram) []models.DiagramSummary {
	out := make([]models.DiagramSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Summary())
	}
	return out
}

func tagIDsOf(tags []models.Tag) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// bucketByDay counts stamps per UTC calendar day, newest first, capped at
// max rows.
func bucketByDay(stamps []time.Time, max int) []DayCount {
	out := make([]DayCount, 0)
	for _, ts := range stamps {
		day := ts.UTC().Format(time.DateOnly)
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Count++
			continue
		}
		if len(out) == max {
			break
		}
		out = append(out, DayCount{Date: day, Count: 1})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// copyTitle suffixes title, trimming it so the result fits the title column.
func copyTitle(title string) string {
	base := []rune(title)
	if room := MaxTitleLength - utf8.RuneCountInString(copySuffix); len(base) > room {
		base = base[:room]
	}
	return string(base) + copySuffix
}
