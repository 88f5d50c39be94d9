package cleaner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/utrading/utrading-market-dashboard/internal/dao"
	"github.com/utrading/utrading-market-dashboard/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AlertHistory{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM alert_histories")
	})
	return db
}

func seedHistory(t *testing.T, d *dao.HistoryDAO) *models.AlertHistory {
	t.Helper()
	h := &models.AlertHistory{
		UserID: 1, Symbol: "BTC", Title: "t", Message: "m",
		Severity: models.SeverityLow, Methods: "email",
		Status: models.HistoryStatusSent,
	}
	require.NoError(t, d.Create(h))
	return h
}

func TestCleaner_RetentionByTime(t *testing.T) {
	db := testDB(t)
	d := dao.NewHistoryDAO(db)
	c := NewCleaner(d, 30, 0)

	old := seedHistory(t, d)
	// 伪造成 31 天前
	require.NoError(t, db.Model(old).Update("created_at", time.Now().AddDate(0, 0, -31)).Error)
	seedHistory(t, d)

	require.NoError(t, c.cleanHistories())

	count, err := d.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCleaner_RowCountCap(t *testing.T) {
	d := dao.NewHistoryDAO(testDB(t))
	c := NewCleaner(d, 30, 3)

	for i := 0; i < 5; i++ {
		seedHistory(t, d)
	}

	require.NoError(t, c.cleanHistories())

	count, err := d.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCleaner_StartStop(t *testing.T) {
	d := dao.NewHistoryDAO(testDB(t))
	c := NewCleaner(d, 30, 0)

	c.Start()
	time.Sleep(20 * time.Millisecond)
	c.Stop()
}
