package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/models"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestDefaultChecker(t *testing.T) {
	owner := Principal{UserID: uuid.New()}
	reader := Principal{UserID: uuid.New()}
	writer := Principal{UserID: uuid.New()}
	sharer := Principal{UserID: uuid.New()}
	designer := Principal{UserID: uuid.New(), Roles: []string{"designers"}}
	stranger := Principal{UserID: uuid.New()}
	admin := Principal{UserID: uuid.New(), IsAdmin: true}

	d := &models.Diagram{
		ID:      uuid.New(),
		OwnerID: owner.UserID,
		Shares: []models.DiagramShare{
			{UserID: reader.UserID, Permission: models.PermissionRead},
			{UserID: writer.UserID, Permission: models.PermissionWrite},
			{UserID: sharer.UserID, Permission: models.PermissionShare},
		},
		RoleShares: []models.DiagramRoleShare{{Role: "designers"}},
	}
	c := DefaultChecker{}

	cases := []struct {
		name                       string
		p                          Principal
		read, write, share, delete bool
	}{
		{"owner", owner, true, true, true, true},
		{"admin", admin, true, true, true, true},
		{"reader", reader, true, false, false, false},
		{"writer", writer, true, true, false, false},
		{"sharer", sharer, true, true, true, false},
		{"role", designer, true, false, false, false},
		{"stranger", stranger, false, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.read, c.CanRead(tc.p, d))
			assert.Equal(t, tc.write, c.CanWrite(tc.p, d))
			assert.Equal(t, tc.share, c.CanShare(tc.p, d))
			assert.Equal(t, tc.delete, c.CanDelete(tc.p, d))
		})
	}

	d.IsPublic = true
	assert.True(t, c.CanRead(stranger, d))
	assert.False(t, c.CanWrite(stranger, d))
}

func TestRequire(t *testing.T) {
	d := &models.Diagram{ID: uuid.New()}
	assert.NoError(t, Require(true, "read", d))

	err := Require(false, "share", d)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	p := Principal{UserID: uuid.New(), IsAdmin: true}
	got, ok := FromContext(WithPrincipal(context.Background(), p))
	assert.True(t, ok)
	assert.Equal(t, p.UserID, got.UserID)
	assert.True(t, got.IsAdmin)
}
