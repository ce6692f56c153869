//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mermaid-studio/engine/internal/migrations"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/pkg/database"
	"github.com/mermaid-studio/engine/pkg/logger"
)

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Set(zap.NewNop())
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("mermaid"),
		tcpostgres.WithUsername("mermaid"),
		tcpostgres.WithPassword("mermaid"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.OpenPostgres(ctx, dsn, zap.NewNop(), false)
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))
	return db
}

func TestDiagramRepositoryOnPostgres(t *testing.T) {
	db := openPostgres(t)
	ctx := context.Background()
	repo := NewDiagramRepository(db)

	owner := &models.User{Email: "owner@example.com", Name: "Owner", PasswordHash: "x"}
	reader := &models.User{Email: "reader@example.com", Name: "Reader", PasswordHash: "x", Roles: []string{"ops"}}
	require.NoError(t, db.Create(owner).Error)
	require.NoError(t, db.Create(reader).Error)

	now := time.Now().UTC().Truncate(time.Second)
	mk := func(title, kind string, at time.Time) *models.Diagram {
		d := &models.Diagram{
			Title: title, SourceText: "graph TD", DiagramType: kind,
			OwnerID: owner.ID, ModifiedBy: owner.ID, CreatedAt: at, ModifiedAt: at,
		}
		require.NoError(t, repo.Create(ctx, d))
		return d
	}
	a := mk("Payments 100% flow", "Flowchart", now.Add(-2*time.Hour))
	b := mk("payments_v2", "Sequence Diagram", now.Add(-time.Hour))
	mk("Inventory", "Flowchart", now)

	hits, err := repo.Search(ctx, "PAYMENTS", &Scope{UserID: owner.ID}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, b.ID, hits[0].ID)

	hits, err = repo.Search(ctx, "100%", &Scope{UserID: owner.ID}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID, hits[0].ID)

	// Grants upsert on the (diagram, user) key.
	require.NoError(t, repo.UpsertShare(ctx, &models.DiagramShare{DiagramID: a.ID, UserID: reader.ID, Permission: models.PermissionRead}))
	require.NoError(t, repo.UpsertShare(ctx, &models.DiagramShare{DiagramID: a.ID, UserID: reader.ID, Permission: models.PermissionWrite}))
	require.NoError(t, repo.ApplyShares(ctx, b.ID, ShareBatch{Roles: []string{"ops"}}))

	var got models.Diagram
	require.NoError(t, repo.GetByID(ctx, a.ID, &got))
	require.Len(t, got.Shares, 1)
	assert.Equal(t, models.PermissionWrite, got.Shares[0].Permission)

	rows, err := repo.List(ctx, DiagramFilter{}, &Scope{UserID: reader.ID, Roles: reader.Roles, IncludeShared: true}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	counts, err := repo.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TypeCount{{DiagramType: "Flowchart", Count: 2}, {DiagramType: "Sequence Diagram", Count: 1}}, counts)

	stamps, err := repo.ModifiedSince(ctx, now.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Len(t, stamps, 2)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.Error(t, repo.GetByID(ctx, a.ID, &got))
	assert.Error(t, repo.GetByID(ctx, uuid.New(), &got))
}

func TestMigrationsRollBack(t *testing.T) {
	db := openPostgres(t)
	require.NoError(t, migrations.RollbackLast(db))
	require.NoError(t, migrations.Run(db))
}
