package alert

import (
	"fmt"
	"strconv"

	"github.com/utrading/utrading-market-dashboard/internal/models"
)

// RenderTitle 按告警类型渲染标题，标题包含符号与本次触发的关键数值
func RenderTitle(rule *models.AlertRule, obs Observation) string {
	switch rule.AlertType {
	case models.AlertTypePriceAbove:
		return fmt.Sprintf("%s 价格突破 %s", rule.Symbol, num(rule.Threshold))
	case models.AlertTypePriceBelow:
		return fmt.Sprintf("%s 价格跌破 %s", rule.Symbol, num(rule.Threshold))
	case models.AlertTypePriceChange:
		return fmt.Sprintf("%s 24h 涨跌幅达 %s%%", rule.Symbol, num(obs.ChangePct))
	case models.AlertTypeVolumeSpike:
		return fmt.Sprintf("%s 成交量异动 %s%%", rule.Symbol, num(obs.VolumePct))
	case models.AlertTypeFundingRate:
		return fmt.Sprintf("%s 资金费率达 %s%%", rule.Symbol, num(obs.FundingRate*100))
	case models.AlertTypeLiquidation:
		return fmt.Sprintf("%s 大额清算 $%s", rule.Symbol, num(obs.LiquidationValue))
	case models.AlertTypeSentiment:
		return fmt.Sprintf("恐惧贪婪指数达 %s", num(obs.Sentiment))
	case models.AlertTypeEtfFlow:
		return fmt.Sprintf("%s ETF 资金流达 %s", rule.Symbol, num(obs.Metric))
	case models.AlertTypeCrossAsset:
		return fmt.Sprintf("%s 相关性达 %s", rule.Symbol, num(obs.Metric))
	case models.AlertTypeIndicator:
		return fmt.Sprintf("%s %s 达 %s", rule.Symbol, rule.Indicator, num(obs.Metric))
	}
	return fmt.Sprintf("%s 告警触发", rule.Symbol)
}

// RenderMessage 渲染正文，补充阈值与当前观测值
func RenderMessage(rule *models.AlertRule, obs Observation) string {
	switch rule.AlertType {
	case models.AlertTypePriceAbove, models.AlertTypePriceBelow:
		return fmt.Sprintf("%s 当前价格 %s，触发阈值 %s", rule.Symbol, num(obs.Price), num(rule.Threshold))
	case models.AlertTypePriceChange:
		return fmt.Sprintf("%s 24h 涨跌幅 %s%%，当前价格 %s，触发阈值 %s%%",
			rule.Symbol, num(obs.ChangePct), num(obs.Price), num(rule.Percentage))
	case models.AlertTypeVolumeSpike:
		return fmt.Sprintf("%s 成交量变化 %s%%，24h 成交量 %s，触发阈值 %s%%",
			rule.Symbol, num(obs.VolumePct), num(obs.Volume), num(rule.Percentage))
	case models.AlertTypeFundingRate:
		return fmt.Sprintf("%s 当期资金费率 %s%%，触发阈值 %s%%",
			rule.Symbol, num(obs.FundingRate*100), num(rule.Threshold*100))
	case models.AlertTypeLiquidation:
		return fmt.Sprintf("%s 发生清算，价值 $%s，价格 %s", rule.Symbol, num(obs.LiquidationValue), num(obs.Price))
	case models.AlertTypeSentiment:
		return fmt.Sprintf("恐惧贪婪指数当前 %s，触发阈值 %s", num(obs.Sentiment), num(rule.Threshold))
	case models.AlertTypeIndicator:
		return fmt.Sprintf("%s %s 当前 %s，触发阈值 %s", rule.Symbol, rule.Indicator, num(obs.Metric), num(rule.Threshold))
	}
	return fmt.Sprintf("%s 当前观测值 %s，触发阈值 %s", rule.Symbol, num(ObservationValue(rule, obs)), num(rule.Threshold))
}

// num 紧凑数值格式，不带多余的尾随零
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
