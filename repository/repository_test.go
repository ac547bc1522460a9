package repository

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sei-platform/seibackend/config"
	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
)

func openTestGorm(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DriverSQLite, filepath.Join(t.TempDir(), "repo.db"), logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db.Gorm))
	t.Cleanup(func() { _ = db.Close() })
	return db.Gorm
}

func seedResearchers(t *testing.T, db *gorm.DB, names ...string) []uint {
	t.Helper()
	ids := make([]uint, 0, len(names))
	for i, n := range names {
		r := models.Researcher{NombreCompleto: n, Correo: filepath.Base(t.Name()) + string(rune('a'+i)) + "@example.mx", Activo: true}
		require.NoError(t, db.Create(&r).Error)
		ids = append(ids, r.ID)
	}
	return ids
}

func TestUserRepository(t *testing.T) {
	db := openTestGorm(t)
	repo := NewGormUserRepository(db)

	u := &models.User{Email: "  Admin@Example.MX ", Nombre: "Admin", IsAdmin: true}
	require.NoError(t, u.SetPassword("secreto123"))
	require.NoError(t, repo.Create(u))

	got, err := repo.GetByEmail("ADMIN@example.mx")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "admin@example.mx", got.Email)
	assert.True(t, got.CheckPassword("secreto123"))
	assert.False(t, got.CheckPassword("otro"))

	_, err = repo.GetByID(999)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	got.Verificado = true
	require.NoError(t, repo.Update(got))
	all, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Verificado)
}

func TestConnectionRepository(t *testing.T) {
	db := openTestGorm(t)
	repo := NewGormConnectionRepository(db)
	ids := seedResearchers(t, db, "Ana", "Luis", "Marta")

	conn := &models.Connection{SolicitanteID: ids[0], DestinatarioID: ids[1]}
	require.NoError(t, repo.Create(conn))
	assert.Equal(t, models.ConnectionPending, conn.Estado)

	found, err := repo.FindBetween(ids[1], ids[0])
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, conn.ID, found.ID)

	none, err := repo.FindBetween(ids[0], ids[2])
	require.NoError(t, err)
	assert.Nil(t, none)

	err = repo.Create(&models.Connection{SolicitanteID: ids[0], DestinatarioID: ids[1]})
	assert.Error(t, err, "the pair is unique")

	require.NoError(t, repo.UpdateEstado(conn.ID, models.ConnectionAccepted))
	got, err := repo.GetByID(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionAccepted, got.Estado)
	require.NotNil(t, got.Solicitante)
	assert.Equal(t, "Ana", got.Solicitante.NombreCompleto)

	list, err := repo.ListForResearcher(ids[1], "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = repo.ListForResearcher(ids[1], models.ConnectionPending)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, repo.Delete(conn.ID))
	assert.ErrorIs(t, repo.Delete(conn.ID), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.UpdateEstado(conn.ID, models.ConnectionRejected), gorm.ErrRecordNotFound)
}

func TestMessageRepository(t *testing.T) {
	db := openTestGorm(t)
	repo := NewGormMessageRepository(db)
	ids := seedResearchers(t, db, "Ana", "Luis", "Marta")

	require.NoError(t, repo.Create(&models.Message{RemitenteID: ids[0], DestinatarioID: ids[1], Contenido: "Hola"}))
	require.NoError(t, repo.Create(&models.Message{RemitenteID: ids[1], DestinatarioID: ids[0], Contenido: "Qué tal"}))
	third := &models.Message{RemitenteID: ids[2], DestinatarioID: ids[1], Contenido: "Buen día"}
	require.NoError(t, repo.Create(third))

	all, err := repo.ListForResearcher(ids[1], nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	conv, err := repo.ListForResearcher(ids[1], &ids[0])
	require.NoError(t, err)
	assert.Len(t, conv, 2)

	unread, err := repo.CountUnread(ids[1])
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, repo.MarkRead(third.ID))
	unread, err = repo.CountUnread(ids[1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, repo.Delete(third.ID))
	_, err = repo.GetByID(third.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
