package dao

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/utrading/utrading-market-dashboard/internal/models"
)

// ErrRuleNotEligible 规则不满足触发条件（冷却中、已停用或并发触发被抢占）
var ErrRuleNotEligible = errors.New("rule not eligible to trigger")

type RuleDAO struct {
	db *gorm.DB
}

var (
	_rule     *RuleDAO
	_ruleOnce sync.Once
)

// NewRuleDAO 创建 RuleDAO
func NewRuleDAO(db *gorm.DB) *RuleDAO {
	return &RuleDAO{db: db}
}

// InitRuleDAO 初始化 RuleDAO 单例
func InitRuleDAO(db *gorm.DB) {
	_ruleOnce.Do(func() {
		_rule = NewRuleDAO(db)
	})
}

// Rule 获取 RuleDAO 单例
func Rule() *RuleDAO {
	return _rule
}

// Create 创建规则
func (d *RuleDAO) Create(rule *models.AlertRule) error {
	return d.db.Create(rule).Error
}

// GetByID 按主键查询规则
func (d *RuleDAO) GetByID(id uint) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := d.db.First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// FindActive 查询所有启用中的规则
func (d *RuleDAO) FindActive() ([]*models.AlertRule, error) {
	var rules []*models.AlertRule
	err := d.db.Where("is_active = ?", true).Find(&rules).Error
	return rules, err
}

// FindActiveBySymbol 查询指定资产上启用中的规则，可按告警类型过滤
func (d *RuleDAO) FindActiveBySymbol(symbol string, alertTypes ...string) ([]*models.AlertRule, error) {
	q := d.db.Where("is_active = ? AND symbol = ?", true, symbol)
	if len(alertTypes) > 0 {
		q = q.Where("alert_type IN ?", alertTypes)
	}

	var rules []*models.AlertRule
	err := q.Find(&rules).Error
	return rules, err
}

// FindActiveByTypes 查询指定告警类型的启用规则（不限资产，
// 用于情绪等无资产维度的事件）
func (d *RuleDAO) FindActiveByTypes(alertTypes ...string) ([]*models.AlertRule, error) {
	var rules []*models.AlertRule
	err := d.db.Where("is_active = ? AND alert_type IN ?", true, alertTypes).
		Find(&rules).Error
	return rules, err
}

// Update 全量保存规则
func (d *RuleDAO) Update(rule *models.AlertRule) error {
	return d.db.Save(rule).Error
}

// SetActive 启用/停用规则（手动操作）
func (d *RuleDAO) SetActive(id uint, active bool) error {
	return d.db.Model(&models.AlertRule{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

// MarkTriggered 原子更新触发记录：trigger_count+1、last_triggered_at=now，
// 一次性规则同时停用。WHERE 条件重复校验冷却窗口，受影响行数为 0 时返回
// ErrRuleNotEligible，保证并发求值下同一冷却窗口内至多触发一次。
func (d *RuleDAO) MarkTriggered(rule *models.AlertRule, now time.Time) error {
	updates := map[string]any{
		"trigger_count":     gorm.Expr("trigger_count + 1"),
		"last_triggered_at": now,
	}
	if rule.IsOneTime {
		updates["is_active"] = false
	}

	res := d.db.Model(&models.AlertRule{}).
		Where("id = ? AND is_active = ?", rule.ID, true).
		Where("last_triggered_at IS NULL OR last_triggered_at <= ?", now.Add(-rule.Cooldown())).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotEligible
	}

	// 同步内存中的副本
	rule.TriggerCount++
	rule.LastTriggeredAt = &now
	if rule.IsOneTime {
		rule.IsActive = false
	}
	return nil
}
