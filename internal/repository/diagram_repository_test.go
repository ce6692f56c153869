package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/internal/testutil"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/mermaid-studio/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

func seedDiagram(t *testing.T, db *gorm.DB, repo DiagramRepository) (*models.User, *models.Diagram) {
	t.Helper()
	owner := testutil.CreateUser(t, db, "owner@example.com", false)
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	d := &models.Diagram{
		Title: "Pipeline", SourceText: "graph TD\nA-->B", DiagramType: "Flowchart",
		OwnerID: owner.ID, ModifiedBy: owner.ID, CreatedAt: now, ModifiedAt: now,
	}
	require.NoError(t, repo.Create(context.Background(), d))
	return owner, d
}

func TestUpdateAfterDeleteDoesNotRecreate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewDiagramRepository(db)
	ctx := context.Background()
	_, d := seedDiagram(t, db, repo)

	var loaded models.Diagram
	require.NoError(t, repo.GetByID(ctx, d.ID, &loaded))
	require.NoError(t, repo.Delete(ctx, d.ID))

	loaded.Title = "Pipeline v2"
	err := repo.Update(ctx, &loaded)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = repo.GetByID(ctx, d.ID, &loaded)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestUpdateWritesExistingRow(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewDiagramRepository(db)
	ctx := context.Background()
	_, d := seedDiagram(t, db, repo)

	d.Title = "Pipeline v2"
	d.IsPublic = true
	require.NoError(t, repo.Update(ctx, d))

	var got models.Diagram
	require.NoError(t, repo.GetByID(ctx, d.ID, &got))
	assert.Equal(t, "Pipeline v2", got.Title)
	assert.True(t, got.IsPublic)
}

func TestApplySharesRollsBackOnFailure(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewDiagramRepository(db)
	ctx := context.Background()
	owner, d := seedDiagram(t, db, repo)
	reader := testutil.CreateUser(t, db, "reader@example.com", false)

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_role_shares", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "diagram_role_shares" {
			_ = tx.AddError(errors.New("role store offline"))
		}
	}))

	err := repo.ApplyShares(ctx, d.ID, ShareBatch{
		Grants: []models.DiagramShare{{UserID: reader.ID, Permission: models.PermissionWrite}},
		Roles:  []string{"ops"},
		Public: true,
		By:     owner.ID,
		At:     time.Now().UTC(),
	})
	require.Error(t, err)

	var got models.Diagram
	require.NoError(t, repo.GetByID(ctx, d.ID, &got))
	assert.Empty(t, got.Shares)
	assert.Empty(t, got.RoleShares)
	assert.False(t, got.IsPublic)
}

func TestApplySharesWritesEverything(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewDiagramRepository(db)
	ctx := context.Background()
	owner, d := seedDiagram(t, db, repo)
	reader := testutil.CreateUser(t, db, "reader@example.com", false)

	require.NoError(t, repo.ApplyShares(ctx, d.ID, ShareBatch{
		Grants: []models.DiagramShare{{UserID: reader.ID, Permission: models.PermissionWrite}},
		Roles:  []string{"ops"},
		Public: true,
		By:     owner.ID,
		At:     time.Now().UTC(),
	}))

	var got models.Diagram
	require.NoError(t, repo.GetByID(ctx, d.ID, &got))
	require.Len(t, got.Shares, 1)
	assert.Equal(t, reader.ID, got.Shares[0].UserID)
	require.Len(t, got.RoleShares, 1)
	assert.True(t, got.IsPublic)
}

func TestCreateUserWithTakenEmailConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "x"}))
	err := repo.Create(ctx, &models.User{Email: "ada@example.com", Name: "Ada again", PasswordHash: "x"})
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
}
