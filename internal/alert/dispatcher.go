package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/utrading/utrading-market-dashboard/internal/dao"
	"github.com/utrading/utrading-market-dashboard/internal/models"
	"github.com/utrading/utrading-market-dashboard/internal/monitor"
	"github.com/utrading/utrading-market-dashboard/internal/nats"
	"github.com/utrading/utrading-market-dashboard/internal/notify"
	"github.com/utrading/utrading-market-dashboard/pkg/goplus"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// EventPublisher 告警事件下游发布接口
type EventPublisher interface {
	PublishAlertEvent(ev *nats.AlertEvent) error
}

// Dispatcher 告警派发器：求值通过后负责触发记录持久化、
// 规则触发状态变更与多渠道并发投递
type Dispatcher struct {
	rules     *dao.RuleDAO
	histories *dao.HistoryDAO
	users     *dao.UserDAO
	notifiers map[string]notify.Notifier
	publisher EventPublisher // 可为 nil（NATS 未配置时）
	timeout   time.Duration
	wg        *goplus.WaitGroup
}

// NewDispatcher 创建派发器
func NewDispatcher(rules *dao.RuleDAO, histories *dao.HistoryDAO, users *dao.UserDAO,
	notifiers []notify.Notifier, publisher EventPublisher, timeout time.Duration) *Dispatcher {
	byMethod := make(map[string]notify.Notifier, len(notifiers))
	for _, n := range notifiers {
		byMethod[n.Method()] = n
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		rules:     rules,
		histories: histories,
		users:     users,
		notifiers: byMethod,
		publisher: publisher,
		timeout:   timeout,
		wg:        goplus.NewWaitGroup(),
	}
}

// ProcessAlert 处理单条规则：两道门求值，通过后先落库再投递。
// 执行顺序不可变：pending 记录持久化 -> 规则触发状态原子变更 -> 渠道投递。
// 只有 pending 记录持久化失败会向上返回错误，投递失败只体现在记录终态。
func (d *Dispatcher) ProcessAlert(rule *models.AlertRule, obs Observation) error {
	now := time.Now()
	metrics := monitor.GetMetrics()

	if !Eligible(rule, now) {
		metrics.IncAlertsEvaluated(rule.AlertType, "ineligible")
		return nil
	}
	if !ConditionMet(rule, obs) {
		metrics.IncAlertsEvaluated(rule.AlertType, "no_match")
		return nil
	}
	metrics.IncAlertsEvaluated(rule.AlertType, "triggered")

	ruleID := rule.ID
	history := &models.AlertHistory{
		UserID:   rule.UserID,
		RuleID:   &ruleID,
		Symbol:   rule.Symbol,
		Title:    RenderTitle(rule, obs),
		Message:  RenderMessage(rule, obs),
		Severity: rule.Severity,
		Methods:  rule.Methods,
		Status:   models.HistoryStatusPending,
	}
	history.SetContext(models.TriggerContext{
		Value:      ObservationValue(rule, obs),
		Threshold:  rule.Threshold,
		Percentage: rule.Percentage,
		Volume:     obs.Volume,
		Indicator:  obs.Indicator,
		Raw:        obs.Raw,
	})

	if err := d.histories.Create(history); err != nil {
		logger.Error().Err(err).Uint("rule_id", rule.ID).Msg("persist alert history failed, abort trigger")
		return fmt.Errorf("persist alert history: %w", err)
	}

	// 原子变更触发状态，条件更新同时挡住并发副本的重复触发
	if err := d.rules.MarkTriggered(rule, now); err != nil {
		if errors.Is(err, dao.ErrRuleNotEligible) {
			// 竞争落败：另一次触发已占用本冷却窗口，回收孤儿记录
			if delErr := d.histories.Delete(history.ID); delErr != nil {
				logger.Error().Err(delErr).Uint("history_id", history.ID).Msg("reclaim orphan history failed")
			}
			logger.Debug().Uint("rule_id", rule.ID).Msg("rule trigger lost race, skipped")
			return nil
		}
		logger.Error().Err(err).Uint("rule_id", rule.ID).Msg("mark rule triggered failed")
		return fmt.Errorf("mark rule triggered: %w", err)
	}

	metrics.IncAlertsTriggered(rule.AlertType, rule.Severity)
	logger.Info().
		Uint("rule_id", rule.ID).
		Uint("history_id", history.ID).
		Str("symbol", rule.Symbol).
		Str("alert_type", rule.AlertType).
		Str("severity", rule.Severity).
		Msg("alert triggered")

	rule2 := *rule
	d.wg.Go(func() {
		d.deliver(&rule2, history)
	})
	return nil
}

// Wait 等待所有在途投递完成（停机时调用）
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// deliver 并发向全部渠道投递并写入唯一终态
func (d *Dispatcher) deliver(rule *models.AlertRule, history *models.AlertHistory) {
	start := time.Now()
	metrics := monitor.GetMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	// 用户查询失败不阻断投递，各适配器自行因目标缺失而失败
	user, err := d.users.GetByID(rule.UserID)
	if err != nil {
		logger.Warn().Err(err).Uint("user_id", rule.UserID).Msg("load user for delivery failed")
		user = &models.User{}
	}

	methods := rule.MethodList()
	results := make([]notify.Result, len(methods))

	wg := goplus.NewWaitGroup()
	for i, method := range methods {
		i, method := i, method
		wg.Go(func() {
			results[i] = d.sendOne(ctx, method, rule, user, history)
		})
	}
	wg.Wait()

	delivery := make(map[string]models.DeliveryResult, len(methods))
	anySent := false
	for i, method := range methods {
		delivery[method] = results[i].ToDelivery()
		status := models.DeliveryFailed
		if results[i].Success {
			anySent = true
			status = models.DeliverySent
		}
		metrics.IncNotificationsSent(method, status)
	}

	// 任一渠道成功即 sent
	status := models.HistoryStatusFailed
	var sentAt *time.Time
	if anySent {
		status = models.HistoryStatusSent
		ts := time.Now()
		sentAt = &ts
	}

	if err := d.histories.SettleDelivery(history.ID, status, sentAt, delivery); err != nil {
		logger.Error().Err(err).Uint("history_id", history.ID).Msg("settle delivery status failed")
	}
	metrics.ObserveDispatchDuration(time.Since(start).Seconds())

	if !anySent {
		logger.Warn().
			Uint("history_id", history.ID).
			Strs("methods", methods).
			Msg("all delivery channels failed")
	}

	d.publishEvent(rule, history, status)
}

// sendOne 单渠道投递，panic 与错误都只折算进本渠道结果
func (d *Dispatcher) sendOne(ctx context.Context, method string, rule *models.AlertRule,
	user *models.User, history *models.AlertHistory) (res notify.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("method", method).Msg("notifier panicked")
			res = notify.Result{Err: fmt.Sprintf("notifier panic: %v", r)}
		}
	}()

	notifier, ok := d.notifiers[method]
	if !ok {
		return notify.Result{Err: "unknown notification method: " + method}
	}
	return notifier.Send(ctx, user, history, rule.OverrideFor(method))
}

// publishEvent 向消息总线发布触发事件，失败只记日志
func (d *Dispatcher) publishEvent(rule *models.AlertRule, history *models.AlertHistory, status string) {
	if d.publisher == nil {
		return
	}

	var value float64
	if history.Context != "" {
		var tc models.TriggerContext
		if err := json.Unmarshal([]byte(history.Context), &tc); err == nil {
			value = tc.Value
		}
	}

	ev := &nats.AlertEvent{
		HistoryID: history.ID,
		RuleID:    rule.ID,
		UserID:    rule.UserID,
		Symbol:    rule.Symbol,
		AlertType: rule.AlertType,
		Severity:  rule.Severity,
		Title:     history.Title,
		Value:     value,
		Status:    status,
		Timestamp: time.Now().Unix(),
	}
	if err := d.publisher.PublishAlertEvent(ev); err != nil {
		logger.Error().Err(err).Uint("history_id", history.ID).Msg("publish alert event failed")
	}
}
