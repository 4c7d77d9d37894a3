package database_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/Wirlhawk/skillswap-sub000/internal/database"
	"github.com/Wirlhawk/skillswap-sub000/internal/database/databasetest"
	"github.com/Wirlhawk/skillswap-sub000/internal/metrics"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

func TestOpenRecordsQueryMetrics(t *testing.T) {
	db := databasetest.New(t)

	user := models.User{Name: "Sam", Email: "sam@example.com"}
	require.NoError(t, db.Create(&user).Error)

	var loaded models.User
	require.NoError(t, db.First(&loaded, "id = ?", user.ID).Error)
	require.Equal(t, user.ID, loaded.ID)
	require.False(t, loaded.CreatedAt.IsZero())

	require.GreaterOrEqual(t, testutil.CollectAndCount(metrics.DBQueryDuration), 2)
}

func TestDatabasesShareWriteWhenNoReplica(t *testing.T) {
	dbs := databasetest.Databases(t)
	require.Same(t, dbs.Write, dbs.Read)
	require.NoError(t, dbs.Ping())
}

func TestNewLoggerLevels(t *testing.T) {
	l := database.NewLogger("silent")
	require.NotNil(t, l.LogMode(logger.Info))

	for _, level := range []string{"", "error", "warn", "info", "debug"} {
		require.NotNil(t, database.NewLogger(level))
	}
}
