package types

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type DiagramCreateRequest struct {
	Title         string   `json:"title" validate:"max=255"`
	DiagramType   string   `json:"diagram_type" validate:"omitempty,diagramtype"`
	SourceText    string   `json:"source_text"`
	Description   string   `json:"description"`
	RenderedImage string   `json:"rendered_image"`
	CategoryID    *string  `json:"category_id" validate:"omitempty,uuid"`
	TagIDs        []string `json:"tag_ids" validate:"omitempty,dive,uuid"`
}

// DiagramUpdateRequest fields are optional; absent fields keep their value.
// A category_id of "" clears the category.
type DiagramUpdateRequest struct {
	Title         *string   `json:"title" validate:"omitempty,max=255"`
	DiagramType   *string   `json:"diagram_type" validate:"omitempty,diagramtype"`
	SourceText    *string   `json:"source_text"`
	Description   *string   `json:"description"`
	RenderedImage *string   `json:"rendered_image"`
	CategoryID    *string   `json:"category_id"`
	TagIDs        *[]string `json:"tag_ids"`
}

type ContentUpdateRequest struct {
	SourceText    string  `json:"source_text"`
	RenderedImage *string `json:"rendered_image"`
}

type DuplicateRequest struct {
	Title string `json:"title" validate:"max=255"`
}

type VisibilityRequest struct {
	Public *bool `json:"public" validate:"required"`
}

type ShareRequest struct {
	Users  []string `json:"users" validate:"omitempty,dive,uuid"`
	Roles  []string `json:"roles" validate:"omitempty,dive,max=64"`
	Public bool     `json:"public"`
}

type GrantRequest struct {
	Permission string `json:"permission" validate:"omitempty,permission"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=140"`
	Description string `json:"description"`
}

type TagRequest struct {
	Name string `json:"name" validate:"required,max=140"`
}
