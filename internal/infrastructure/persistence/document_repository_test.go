package persistence

import (
	"context"
	"testing"

	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReceipt(t *testing.T, f *fixture, number string, sequence int64, entity *uuid.UUID) *document.GeneratedDocument {
	t.Helper()
	spec, err := document.TypeReceipt.Spec()
	require.NoError(t, err)
	return document.NewGeneratedDocument(f.districtID, f.dossier.ID, spec, number, sequence, entity, f.actorID)
}

func TestGormDocumentRepository_ActiveNumber(t *testing.T) {
	f := newFixture(t)
	repo := NewGormDocumentRepository(f.db)
	ctx := context.Background()
	entity := uuid.New()

	doc := newReceipt(t, f, "001/2024", 1, &entity)
	require.NoError(t, repo.Create(ctx, doc))

	t.Run("active number is unique within its scope", func(t *testing.T) {
		dup := newReceipt(t, f, "001/2024", 1, &entity)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrDuplicateNumber)
	})

	t.Run("superseded number can be reissued", func(t *testing.T) {
		loaded, err := repo.FindActiveByNumber(ctx, doc.ScopeKey, "001/2024")
		require.NoError(t, err)
		require.NoError(t, loaded.Supersede(uuid.New()))
		require.NoError(t, repo.Save(ctx, loaded))

		_, err = repo.FindActiveByNumber(ctx, doc.ScopeKey, "001/2024")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		again := newReceipt(t, f, "001/2024", 1, &entity)
		require.NoError(t, repo.Create(ctx, again))

		all, err := repo.FindByDossier(ctx, f.dossier.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestGormDocumentRepository_FindActive(t *testing.T) {
	f := newFixture(t)
	repo := NewGormDocumentRepository(f.db)
	ctx := context.Background()
	entity := uuid.New()

	require.NoError(t, repo.Create(ctx, newReceipt(t, f, "001/2024", 1, &entity)))
	require.NoError(t, repo.Create(ctx, newReceipt(t, f, "002/2024", 2, nil)))

	withEntity, err := repo.FindActive(ctx, f.dossier.ID, document.TypeReceipt, &entity)
	require.NoError(t, err)
	require.Len(t, withEntity, 1)
	assert.Equal(t, "001/2024", withEntity[0].Number)

	withoutEntity, err := repo.FindActive(ctx, f.dossier.ID, document.TypeReceipt, nil)
	require.NoError(t, err)
	require.Len(t, withoutEntity, 1)
	assert.Equal(t, "002/2024", withoutEntity[0].Number)
}

func TestGormDocumentRepository_StaleSave(t *testing.T) {
	f := newFixture(t)
	repo := NewGormDocumentRepository(f.db)
	ctx := context.Background()

	doc := newReceipt(t, f, "001/2024", 1, nil)
	require.NoError(t, repo.Create(ctx, doc))

	a, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, a.Supersede(uuid.New()))
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, b.Supersede(uuid.New()))
	assert.ErrorIs(t, repo.Save(ctx, b), shared.ErrConcurrencyConflict)
}

func TestGormSequenceRepository(t *testing.T) {
	f := newFixture(t)
	repo := NewGormSequenceRepository(f.db)
	ctx := context.Background()
	key := "doc:RECEIPT:" + f.dossier.ID.String() + "/2024"

	n, err := repo.Next(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Next(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.Bump(ctx, key, 10))
	n, err = repo.Next(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	require.NoError(t, repo.Bump(ctx, key, 3))
	n, err = repo.Next(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n, "bump never lowers a counter")

	other, err := repo.Next(ctx, "doc:RECEIPT:"+f.dossier.ID.String()+"/2025")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	require.NoError(t, repo.Bump(ctx, "doc:REQUISITION", 41))
	n, err = repo.Next(ctx, "doc:REQUISITION")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
