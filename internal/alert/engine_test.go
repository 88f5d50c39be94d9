package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-market-dashboard/internal/market"
	"github.com/utrading/utrading-market-dashboard/internal/models"
	"github.com/utrading/utrading-market-dashboard/internal/notify"
)

func TestEngine_PriceTickTriggersMatchingRule(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, result: notify.Result{Success: true, DeliveredAt: time.Now()}}
	env := newDispatcherEnv(t, email)
	engine := NewEngine(env.dispatcher, env.rules)

	btc := newTriggerRule()
	btc.Methods = "email"
	require.NoError(t, env.rules.Create(btc))

	eth := newTriggerRule()
	eth.Symbol = "ETH"
	eth.Methods = "email"
	require.NoError(t, env.rules.Create(eth))

	require.NoError(t, engine.HandleEvent(market.PriceTick{
		Asset:     "BTC",
		Price:     42500,
		Timestamp: time.Now(),
	}))
	env.dispatcher.Wait()

	// 只有 BTC 规则触发
	histories, err := env.histories.ListByUser(1, 10)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, "BTC", histories[0].Symbol)
}

func TestEngine_SentimentRulesLoadedWithoutSymbol(t *testing.T) {
	email := &fakeNotifier{method: models.MethodEmail, result: notify.Result{Success: true, DeliveredAt: time.Now()}}
	env := newDispatcherEnv(t, email)
	engine := NewEngine(env.dispatcher, env.rules)

	rule := newTriggerRule()
	rule.Symbol = "MARKET"
	rule.AlertType = models.AlertTypeSentiment
	rule.Threshold = 20
	rule.Methods = "email"
	require.NoError(t, env.rules.Create(rule))

	require.NoError(t, engine.HandleEvent(market.SentimentUpdate{
		Value:          15,
		Classification: "Extreme Fear",
		Timestamp:      time.Now(),
	}))
	env.dispatcher.Wait()

	histories, err := env.histories.ListByUser(1, 10)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Contains(t, histories[0].Title, "15")
}

func TestEngine_VolumePctComputedBetweenTicks(t *testing.T) {
	env := newDispatcherEnv(t)
	engine := NewEngine(env.dispatcher, env.rules)

	first := engine.buildObservation(market.PriceTick{Asset: "BTC", Volume24h: 1000})
	assert.Zero(t, first.VolumePct, "首笔无基准，不计变化")

	second := engine.buildObservation(market.PriceTick{Asset: "BTC", Volume24h: 1800})
	assert.InDelta(t, 80, second.VolumePct, 0.001)

	other := engine.buildObservation(market.PriceTick{Asset: "ETH", Volume24h: 500})
	assert.Zero(t, other.VolumePct, "不同资产基准相互独立")
}
