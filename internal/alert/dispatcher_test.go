package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/utrading/utrading-market-dashboard/internal/dao"
	"github.com/utrading/utrading-market-dashboard/internal/models"
	"github.com/utrading/utrading-market-dashboard/internal/nats"
	"github.com/utrading/utrading-market-dashboard/internal/notify"
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

// fakeNotifier 可编排结果的渠道适配器
type fakeNotifier struct {
	method string
	result notify.Result
	panics bool
	calls  int
}

func (f *fakeNotifier) Method() string { return f.method }

func (f *fakeNotifier) Send(_ context.Context, _ *models.User, _ *models.AlertHistory, _ models.ChannelOverride) notify.Result {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.result
}

// fakePublisher 记录发布的告警事件
type fakePublisher struct {
	events []*nats.AlertEvent
}

func (f *fakePublisher) PublishAlertEvent(ev *nats.AlertEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type dispatcherEnv struct {
	dispatcher *Dispatcher
	rules      *dao.RuleDAO
	histories  *dao.HistoryDAO
	publisher  *fakePublisher
}

func newDispatcherEnv(t *testing.T, notifiers ...notify.Notifier) *dispatcherEnv {
	t.Helper()
	db := testDB(t)

	rules := dao.NewRuleDAO(db)
	histories := dao.NewHistoryDAO(db)
	users := dao.NewUserDAO(db)
	require.NoError(t, users.Create(&models.User{Email: "user@example.com"}))

	pub := &fakePublisher{}
	return &dispatcherEnv{
		dispatcher: NewDispatcher(rules, histories, users, notifiers, pub, 5*time.Second),
		rules:      rules,
		histories:  histories,
		publisher:  pub,
	}
}

func newTriggerRule() *models.AlertRule {
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

func TestDispatcher_TriggerDeliversAndSettles(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, result: notify.Result{Success: true, DeliveredAt: time.Now()}}
	webhook := &fakeNotifier{method: models.MethodWebhook, result: notify.Result{Err: "connection refused"}}
	env := newDispatcherEnv(t, email, webhook)

	rule := newTriggerRule()
	require.NoError(t, env.rules.Create(rule))

	require.NoError(t, env.dispatcher.ProcessAlert(rule, Observation{Price: 42500}))
	env.dispatcher.Wait()

	// 规则触发状态已变更
	stored, err := env.rules.GetByID(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TriggerCount)
	assert.NotNil(t, stored.LastTriggeredAt)

	// 任一渠道成功 -> sent
	histories, err := env.histories.ListByUser(1, 10)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	h := histories[0]
	assert.Equal(t, models.HistoryStatusSent, h.Status)
	assert.NotNil(t, h.SentAt)
	assert.Contains(t, h.Title, "BTC")
	assert.Contains(t, h.Title, "42000")

	delivery := h.DeliveryMap()
	require.Len(t, delivery, 2)
	assert.Equal(t, models.DeliverySent, delivery[models.MethodEmail].Status)
	assert.Equal(t, models.DeliveryFailed, delivery[models.MethodWebhook].Status)
	assert.Equal(t, "connection refused", delivery[models.MethodWebhook].Error)

	// 下游事件已发布
	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, h.ID, env.publisher.events[0].HistoryID)
	assert.Equal(t, models.HistoryStatusSent, env.publisher.events[0].Status)
	assert.Equal(t, 42500.0, env.publisher.events[0].Value)
}

func TestDispatcher_AllChannelsFailed(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, result: notify.Result{Err: "smtp down"}}
	webhook := &fakeNotifier{method: models.MethodWebhook, result: notify.Result{Err: "timeout"}}
	env := newDispatcherEnv(t, email, webhook)

	rule := newTriggerRule()
	require.NoError(t, env.rules.Create(rule))

	require.NoError(t, env.dispatcher.ProcessAlert(rule, Observation{Price: 50000}))
	env.dispatcher.Wait()

	histories, err := env.histories.ListByUser(1, 10)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, models.HistoryStatusFailed, histories[0].Status)
	assert.Nil(t, histories[0].SentAt)

	// 全渠道失败的触发记录保留，不删除
	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, models.HistoryStatusFailed, env.publisher.events[0].Status)
}

func TestDispatcher_NotifierPanicIsolated(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, panics: true}
	webhook := &fakeNotifier{method: models.MethodWebhook, result: notify.Result{Success: true, DeliveredAt: time.Now()}}
	env := newDispatcherEnv(t, email, webhook)

	rule := newTriggerRule()
	require.NoError(t, env.rules.Create(rule))

	require.NoError(t, env.dispatcher.ProcessAlert(rule, Observation{Price: 43000}))
	env.dispatcher.Wait()

	histories, err := env.histories.ListByUser(1, 10)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, models.HistoryStatusSent, histories[0].Status)

	delivery := histories[0].DeliveryMap()
	assert.Equal(t, models.DeliveryFailed, delivery[models.MethodEmail].Status)
	assert.Contains(t, delivery[models.MethodEmail].Error, "panic")
	assert.Equal(t, models.DeliverySent, delivery[models.MethodWebhook].Status)
}

func TestDispatcher_UnknownMethodFails(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, result: notify.Result{Success: true, DeliveredAt: time.Now()}}
	env := newDispatcherEnv(t, email)

	rule := newTriggerRule()
	rule.Methods = "email,pager"
	require.NoError(t, env.rules.Create(rule))

	require.NoError(t, env.dispatcher.ProcessAlert(rule, Observation{Price: 43000}))
	env.dispatcher.Wait()

	histories, err := env.histories.ListByUser(1, 10)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, models.HistoryStatusSent, histories[0].Status)

	delivery := histories[0].DeliveryMap()
	assert.Equal(t, models.DeliveryFailed, delivery["pager"].Status)
	assert.Contains(t, delivery["pager"].Error, "unknown notification method")
}

func TestDispatcher_CooldownBlocksRetrigger(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, result: notify.Result{Success: true, DeliveredAt: time.Now()}}
	env := newDispatcherEnv(t, email)

	rule := newTriggerRule()
	rule.Methods = "email"
	require.NoError(t, env.rules.Create(rule))

	require.NoError(t, env.dispatcher.ProcessAlert(rule, Observation{Price: 42500}))
	env.dispatcher.Wait()

	// 冷却窗口内条件仍满足，但不再触发
	require.NoError(t, env.dispatcher.ProcessAlert(rule, Observation{Price: 43000}))
	env.dispatcher.Wait()

	histories, err := env.histories.ListByUser(1, 10)
	require.NoError(t, err)
	assert.Len(t, histories, 1)
	assert.Equal(t, 1, email.calls)
}

func TestDispatcher_OneTimeDeactivates(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, result: notify.Result{Success: true, DeliveredAt: time.Now()}}
	env := newDispatcherEnv(t, email)

	rule := newTriggerRule()
	rule.Methods = "email"
	rule.IsOneTime = true
	rule.CooldownMinutes = 0
	require.NoError(t, env.rules.Create(rule))

	require.NoError(t, env.dispatcher.ProcessAlert(rule, Observation{Price: 42500}))
	env.dispatcher.Wait()

	stored, err := env.rules.GetByID(rule.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	// 已停用，无冷却限制也不再触发
	require.NoError(t, env.dispatcher.ProcessAlert(stored, Observation{Price: 43000}))
	env.dispatcher.Wait()

	histories, err := env.histories.ListByUser(1, 10)
	require.NoError(t, err)
	assert.Len(t, histories, 1)
}

func TestDispatcher_ConditionNotMetNoHistory(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, result: notify.Result{Success: true, DeliveredAt: time.Now()}}
	env := newDispatcherEnv(t, email)

	rule := newTriggerRule()
	require.NoError(t, env.rules.Create(rule))

	require.NoError(t, env.dispatcher.ProcessAlert(rule, Observation{Price: 41999}))
	env.dispatcher.Wait()

	count, err := env.histories.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, email.calls)
}
