package dao

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/utrading/utrading-market-dashboard/internal/models"
)

type HistoryDAO struct {
	db *gorm.DB
}

var (
	_history     *HistoryDAO
	_historyOnce sync.Once
)

// NewHistoryDAO 创建 HistoryDAO
func NewHistoryDAO(db *gorm.DB) *HistoryDAO {
	return &HistoryDAO{db: db}
}

// InitHistoryDAO 初始化 HistoryDAO 单例
func InitHistoryDAO(db *gorm.DB) {
	_historyOnce.Do(func() {
		_history = NewHistoryDAO(db)
	})
}

// History 获取 HistoryDAO 单例
func History() *HistoryDAO {
	return _history
}

// Create 创建触发记录（pending 状态）
func (d *HistoryDAO) Create(h *models.AlertHistory) error {
	return d.db.Create(h).Error
}

// GetByID 按主键查询
func (d *HistoryDAO) GetByID(id uint) (*models.AlertHistory, error) {
	var h models.AlertHistory
	if err := d.db.First(&h, id).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// SettleDelivery 写入终态：整体状态、各渠道投递结果、成功时间。
// pending -> sent|failed 只发生一次，调用方在所有渠道 settle 之后调用。
func (d *HistoryDAO) SettleDelivery(id uint, status string, sentAt *time.Time, delivery map[string]models.DeliveryResult) error {
	updates := map[string]any{
		"status":          status,
		"delivery_status": models.MarshalDeliveryMap(delivery),
	}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}

	return d.db.Model(&models.AlertHistory{}).
		Where("id = ? AND status = ?", id, models.HistoryStatusPending).
		Updates(updates).Error
}

// Delete 删除触发记录（仅用于回收并发触发竞争中落败方的孤儿记录）
func (d *HistoryDAO) Delete(id uint) error {
	return d.db.Delete(&models.AlertHistory{}, id).Error
}

// Acknowledge 用户确认告警
func (d *HistoryDAO) Acknowledge(id uint) error {
	return d.setUserState(id, models.HistoryStatusAcknowledged)
}

// Dismiss 用户忽略告警
func (d *HistoryDAO) Dismiss(id uint) error {
	return d.setUserState(id, models.HistoryStatusDismissed)
}

func (d *HistoryDAO) setUserState(id uint, status string) error {
	return d.db.Model(&models.AlertHistory{}).
		Where("id = ? AND status IN ?", id, []string{models.HistoryStatusSent, models.HistoryStatusFailed}).
		Update("status", status).Error
}

// ListByUser 查询用户的触发记录（倒序）
func (d *HistoryDAO) ListByUser(userID uint, limit int) ([]*models.AlertHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*models.AlertHistory
	err := d.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteOld 清理早于指定时间的记录
func (d *HistoryDAO) DeleteOld(before time.Time) (int64, error) {
	res := d.db.Where("created_at < ?", before).Delete(&models.AlertHistory{})
	return res.RowsAffected, res.Error
}

// Count 记录总数
func (d *HistoryDAO) Count() (int64, error) {
	var count int64
	err := d.db.Model(&models.AlertHistory{}).Count(&count).Error
	return count, err
}

// DeleteOldest 删除最旧的 n 条记录（数量兜底清理）
func (d *HistoryDAO) DeleteOldest(n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	var ids []uint
	if err := d.db.Model(&models.AlertHistory{}).
		Order("created_at ASC").
		Limit(int(n)).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := d.db.Where("id IN ?", ids).Delete(&models.AlertHistory{})
	return res.RowsAffected, res.Error
}
