package dao

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/utrading/utrading-market-dashboard/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.AlertRule{}, &models.AlertHistory{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM alert_rules")
		db.Exec("DELETE FROM alert_histories")
		db.Exec("DELETE FROM users")
	})
	return db
}

func newTestRule() *models.AlertRule {
	return &models.AlertRule{
		UserID:          1,
		Symbol:          "BTC",
		AlertType:       models.AlertTypePriceAbove,
		Threshold:       42000,
		Severity:        models.SeverityHigh,
		Methods:         "email,webhook",
		IsActive:        true,
		CooldownMinutes: 60,
	}
}

func TestRuleDAO_FindActiveBySymbol(t *testing.T) {
	d := &RuleDAO{db: testDB(t)}

	active := newTestRule()
	require.NoError(t, d.Create(active))

	inactive := newTestRule()
	inactive.IsActive = false
	require.NoError(t, d.Create(inactive))

	other := newTestRule()
	other.Symbol = "ETH"
	require.NoError(t, d.Create(other))

	rules, err := d.FindActiveBySymbol("BTC")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, active.ID, rules[0].ID)

	// 类型过滤
	rules, err = d.FindActiveBySymbol("BTC", models.AlertTypeFundingRate)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleDAO_MarkTriggered(t *testing.T) {
	d := &RuleDAO{db: testDB(t)}

	rule := newTestRule()
	require.NoError(t, d.Create(rule))

	now := time.Now()
	require.NoError(t, d.MarkTriggered(rule, now))

	stored, err := d.GetByID(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TriggerCount)
	assert.NotNil(t, stored.LastTriggeredAt)
	assert.True(t, stored.IsActive)

	// 冷却窗口内再次触发被拒绝
	err = d.MarkTriggered(stored, now.Add(10*time.Minute))
	assert.ErrorIs(t, err, ErrRuleNotEligible)

	// 冷却结束后允许
	require.NoError(t, d.MarkTriggered(stored, now.Add(61*time.Minute)))
	stored, err = d.GetByID(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TriggerCount)
}

func TestRuleDAO_MarkTriggeredOneTime(t *testing.T) {
	d := &RuleDAO{db: testDB(t)}

	rule := newTestRule()
	rule.IsOneTime = true
	require.NoError(t, d.Create(rule))

	require.NoError(t, d.MarkTriggered(rule, time.Now()))
	assert.False(t, rule.IsActive)

	stored, err := d.GetByID(rule.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	// 已停用，即使冷却结束也不能再触发
	err = d.MarkTriggered(stored, time.Now().Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrRuleNotEligible)
}

func TestRuleDAO_MarkTriggeredInactive(t *testing.T) {
	d := &RuleDAO{db: testDB(t)}

	rule := newTestRule()
	rule.IsActive = false
	require.NoError(t, d.Create(rule))

	err := d.MarkTriggered(rule, time.Now())
	assert.ErrorIs(t, err, ErrRuleNotEligible)
}
