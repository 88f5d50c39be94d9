package alert

import (
	"math"
	"time"

	"github.com/spf13/cast"

	"github.com/utrading/utrading-market-dashboard/internal/models"
)

// Eligible 资格门：规则启用且冷却窗口已过
func Eligible(rule *models.AlertRule, now time.Time) bool {
	if !rule.IsActive {
		return false
	}
	if rule.LastTriggeredAt == nil {
		return true
	}
	return !now.Before(rule.LastTriggeredAt.Add(rule.Cooldown()))
}

// ConditionMet 条件门：按告警类型对观测值做谓词判断
func ConditionMet(rule *models.AlertRule, obs Observation) bool {
	switch rule.AlertType {
	case models.AlertTypePriceAbove:
		return obs.Price > rule.Threshold
	case models.AlertTypePriceBelow:
		return obs.Price < rule.Threshold
	case models.AlertTypePriceChange:
		return math.Abs(obs.ChangePct) >= rule.Percentage
	case models.AlertTypeVolumeSpike:
		return math.Abs(obs.VolumePct) >= rule.Percentage
	case models.AlertTypeFundingRate:
		// 资金费率带符号比较，默认判越过上界
		return compare(obs.FundingRate, rule.Threshold, rule.Operator, "gte")
	case models.AlertTypeLiquidation:
		min := rule.Threshold
		if v := cast.ToFloat64(rule.ParamMap()["min_value"]); v > 0 {
			min = v
		}
		return obs.LiquidationValue >= min
	case models.AlertTypeSentiment:
		// 情绪告警默认低于阈值触发（极度恐惧）
		return compare(obs.Sentiment, rule.Threshold, rule.Operator, "lte")
	case models.AlertTypeEtfFlow, models.AlertTypeCrossAsset:
		return compare(obs.Metric, rule.Threshold, rule.Operator, "gte")
	case models.AlertTypeIndicator:
		if rule.Indicator != "" && rule.Indicator != obs.Indicator {
			return false
		}
		return compare(obs.Metric, rule.Threshold, rule.Operator, "gte")
	}
	return false
}

// ObservationValue 进入标题与历史记录的触发观测值
func ObservationValue(rule *models.AlertRule, obs Observation) float64 {
	switch rule.AlertType {
	case models.AlertTypePriceAbove, models.AlertTypePriceBelow:
		return obs.Price
	case models.AlertTypePriceChange:
		return obs.ChangePct
	case models.AlertTypeVolumeSpike:
		return obs.VolumePct
	case models.AlertTypeFundingRate:
		return obs.FundingRate
	case models.AlertTypeLiquidation:
		return obs.LiquidationValue
	case models.AlertTypeSentiment:
		return obs.Sentiment
	default:
		return obs.Metric
	}
}

func compare(value, threshold float64, op, fallback string) bool {
	if op == "" {
		op = fallback
	}
	switch op {
	case "gt":
		return value > threshold
	case "lt":
		return value < threshold
	case "gte":
		return value >= threshold
	case "lte":
		return value <= threshold
	case "eq":
		return value == threshold
	}
	return false
}
