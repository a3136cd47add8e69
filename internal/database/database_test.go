package database_test

import (
	"context"
	"testing"

	"skincheck-back/internal/config"
	"skincheck-back/internal/database"
	"skincheck-back/internal/database/dbtest"
	"skincheck-back/internal/models"

	"github.com/stretchr/testify/require"
)

func TestInitDB_UnknownDriver(t *testing.T) {
	_, err := database.InitDB(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
}

func TestMigrateDB_CreatesTables(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, database.Ping(context.Background(), db))

	for _, table := range []string{"users", "user_profiles", "otp_verifications", "image_uploads", "analysis_history"} {
		require.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestCascadeOnUserDelete(t *testing.T) {
	db := dbtest.New(t)

	user := models.User{Email: "a@example.com", Password: "x", Profile: &models.Profile{SkinType: "type2"}}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.ImageUpload{ID: "u1", UserID: user.ID, ImagePath: "p", Filename: "f.jpg", Result: "benign"}).Error)
	require.NoError(t, db.Create(&models.AnalysisHistory{UserID: user.ID, SearchQuery: "mole"}).Error)

	require.NoError(t, db.Delete(&models.User{}, user.ID).Error)

	var n int64
	require.NoError(t, db.Model(&models.ImageUpload{}).Count(&n).Error)
	require.Zero(t, n)
	require.NoError(t, db.Model(&models.Profile{}).Count(&n).Error)
	require.Zero(t, n)
	require.NoError(t, db.Model(&models.AnalysisHistory{}).Count(&n).Error)
	require.Zero(t, n)
}
