package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

type sample struct {
	Type  string `json:"diagram_type" validate:"omitempty,diagramtype"`
	Level string `json:"permission" validate:"omitempty,permission"`
	Email string `json:"email" validate:"required,email"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Type: "Gantt Chart", Level: "share", Email: "a@b.co"}))
	require.NoError(t, Struct(sample{Email: "a@b.co"}))

	err := Struct(sample{Type: "Venn", Email: "a@b.co"})
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	var ae *appErr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "diagram_type", ae.Meta["field"])

	err = Struct(sample{Level: "owner", Email: "a@b.co"})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "permission", ae.Meta["field"])

	err = Struct(sample{})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "email", ae.Meta["field"])
}
