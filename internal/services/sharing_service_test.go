package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/internal/realtime"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

func TestSetPublicMakesDiagramReadableByAnyone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, f.owner, "Roadmap", "timeline\ntitle 2026")

	_, err := f.diagrams.Get(ctx, f.other, d.ID)
	require.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	updated, err := f.sharing.SetPublic(ctx, f.owner, d.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.True(t, updated.ModifiedAt.After(d.ModifiedAt))

	got, err := f.diagrams.Get(ctx, f.other, d.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublic)

	events := f.notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, notified{ID: d.ID, Kind: realtime.EventUpdated}, events[1])
}

func TestSetPublicRequiresShareCapability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, f.owner, "Roadmap", "timeline\ntitle 2026")

	_, err := f.sharing.SetPublic(ctx, f.other, d.ID, true)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	require.NoError(t, f.sharing.Grant(ctx, f.owner, d.ID, f.other.UserID, models.PermissionWrite))
	_, err = f.sharing.SetPublic(ctx, f.other, d.ID, true)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	require.NoError(t, f.sharing.Grant(ctx, f.owner, d.ID, f.other.UserID, models.PermissionShare))
	_, err = f.sharing.SetPublic(ctx, f.other, d.ID, true)
	require.NoError(t, err)

	_, err = f.sharing.SetPublic(ctx, f.admin, uuid.New(), true)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestGrantIsIdempotentAndUpgradesLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, f.owner, "Schema", "erDiagram\nA ||--o{ B : has")

	require.NoError(t, f.sharing.Grant(ctx, f.owner, d.ID, f.other.UserID, ""))
	require.NoError(t, f.sharing.Grant(ctx, f.owner, d.ID, f.other.UserID, models.PermissionRead))

	got, err := f.diagrams.Get(ctx, f.other, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Shares, 1)
	assert.Equal(t, models.PermissionRead, got.Shares[0].Permission)

	require.NoError(t, f.sharing.Grant(ctx, f.owner, d.ID, f.other.UserID, models.PermissionWrite))
	got, err = f.diagrams.Get(ctx, f.other, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Shares, 1)
	assert.Equal(t, models.PermissionWrite, got.Shares[0].Permission)
}

func TestGrantRejectsUnknownLevel(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, f.owner, "Schema", "erDiagram\nA ||--o{ B : has")
	err := f.sharing.Grant(context.Background(), f.owner, d.ID, f.other.UserID, "admin")
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestRevokeOfUngrantedUserIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, f.owner, "Journey", "journey\ntitle Onboarding")

	require.NoError(t, f.sharing.Revoke(ctx, f.owner, d.ID, f.other.UserID))

	require.NoError(t, f.sharing.Grant(ctx, f.owner, d.ID, f.other.UserID, models.PermissionRead))
	require.NoError(t, f.sharing.Revoke(ctx, f.owner, d.ID, f.other.UserID))
	_, err := f.diagrams.Get(ctx, f.other, d.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
}

func TestShareGrantsWriteToUsersAndReadToRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, f.owner, "Pipeline", "flowchart LR\nbuild-->deploy")

	shared, err := f.sharing.Share(ctx, f.owner, d.ID, &ShareInput{
		Users: []uuid.UUID{f.other.UserID},
		Roles: []string{"reviewers", " reviewers ", ""},
	})
	require.NoError(t, err)
	assert.False(t, shared.IsPublic)
	require.Len(t, shared.RoleShares, 1)
	assert.Equal(t, "reviewers", shared.RoleShares[0].Role)

	// Write grant lets the user edit.
	title := "Pipeline v2"
	_, err = f.diagrams.Update(ctx, f.other, d.ID, &UpdateDiagramInput{Title: &title})
	require.NoError(t, err)

	// Role holders can read but not write.
	_, err = f.diagrams.Get(ctx, f.reviewer, d.ID)
	require.NoError(t, err)
	_, err = f.diagrams.Update(ctx, f.reviewer, d.ID, &UpdateDiagramInput{Title: &title})
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	// Sharing again is idempotent.
	_, err = f.sharing.Share(ctx, f.owner, d.ID, &ShareInput{Roles: []string{"reviewers"}, Public: true})
	require.NoError(t, err)
	got, err := f.diagrams.Get(ctx, f.owner, d.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublic)
	assert.Len(t, got.RoleShares, 1)
}
