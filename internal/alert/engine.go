package alert

import (
	"sync"

	"github.com/utrading/utrading-market-dashboard/internal/dao"
	"github.com/utrading/utrading-market-dashboard/internal/market"
	"github.com/utrading/utrading-market-dashboard/internal/models"
	"github.com/utrading/utrading-market-dashboard/pkg/concurrent"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// Engine 订阅规范化市场事件，加载匹配规则并逐条交给派发器求值。
// 同一规则的求值全程持有规则级互斥锁，进程内并发事件不会重复触发。
type Engine struct {
	dispatcher *Dispatcher
	rules      *dao.RuleDAO

	locks      concurrent.Map[uint, *sync.Mutex]
	prevVolume concurrent.Map[string, float64] // symbol -> 上一笔 24h 成交量
}

// NewEngine 创建求值引擎
func NewEngine(dispatcher *Dispatcher, rules *dao.RuleDAO) *Engine {
	return &Engine{dispatcher: dispatcher, rules: rules}
}

// HandleEvent 实现 market 事件处理器。规则加载失败向上返回，
// 单条规则处理失败只记日志，不影响同事件下的其他规则。
func (e *Engine) HandleEvent(ev market.Event) error {
	rules, err := e.loadRules(ev)
	if err != nil {
		logger.Error().Err(err).Str("topic", ev.Topic()).Msg("load rules for event failed")
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	obs := e.buildObservation(ev)
	for _, rule := range rules {
		e.processOne(rule, obs)
	}
	return nil
}

// loadRules 按事件种类加载候选规则
func (e *Engine) loadRules(ev market.Event) ([]*models.AlertRule, error) {
	switch ev.(type) {
	case market.PriceTick:
		return e.rules.FindActiveBySymbol(ev.Symbol(),
			models.AlertTypePriceAbove, models.AlertTypePriceBelow,
			models.AlertTypePriceChange, models.AlertTypeVolumeSpike)
	case market.FundingUpdate:
		return e.rules.FindActiveBySymbol(ev.Symbol(), models.AlertTypeFundingRate)
	case market.LiquidationEvent:
		return e.rules.FindActiveBySymbol(ev.Symbol(), models.AlertTypeLiquidation)
	case market.SentimentUpdate:
		// 情绪事件无资产维度，按类型取全量
		return e.rules.FindActiveByTypes(models.AlertTypeSentiment)
	case market.StablecoinUpdate:
		return e.rules.FindActiveBySymbol(ev.Symbol(),
			models.AlertTypePriceAbove, models.AlertTypePriceBelow, models.AlertTypePriceChange)
	case market.CorrelationUpdate:
		return e.rules.FindActiveBySymbol(ev.Symbol(), models.AlertTypeCrossAsset)
	}
	return nil, nil
}

// buildObservation 构造观测，价格事件补算成交量环比变化
func (e *Engine) buildObservation(ev market.Event) Observation {
	obs := observationFromEvent(ev)

	if tick, ok := ev.(market.PriceTick); ok {
		if prev, found := e.prevVolume.Load(tick.Asset); found && prev > 0 {
			obs.VolumePct = (tick.Volume24h - prev) / prev * 100
		}
		e.prevVolume.Store(tick.Asset, tick.Volume24h)
	}
	return obs
}

func (e *Engine) processOne(rule *models.AlertRule, obs Observation) {
	mu, _ := e.locks.LoadOrStore(rule.ID, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	if err := e.dispatcher.ProcessAlert(rule, obs); err != nil {
		logger.Error().Err(err).Uint("rule_id", rule.ID).Msg("process alert rule failed")
	}
}
