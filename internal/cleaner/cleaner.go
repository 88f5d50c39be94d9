package cleaner

import (
	"time"

	"github.com/utrading/utrading-market-dashboard/internal/dao"
	"github.com/utrading/utrading-market-dashboard/internal/monitor"
	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// Cleaner 数据清理器，定时清理告警触发历史
type Cleaner struct {
	histories     *dao.HistoryDAO
	interval      time.Duration // 清理间隔
	retentionDays int           // 时间保留窗口（天）
	maxRows       int64         // 数量兜底上限
	done          chan struct{} // 停止信号
}

// NewCleaner 创建清理器
func NewCleaner(histories *dao.HistoryDAO, retentionDays int, maxRows int64) *Cleaner {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Cleaner{
		histories:     histories,
		interval:      1 * time.Hour, // 固定 1 小时
		retentionDays: retentionDays,
		maxRows:       maxRows,
		done:          make(chan struct{}),
	}
}

// Start 启动清理任务
func (c *Cleaner) Start() {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		logger.Info().Msg("cleaner started")

		// 启动时立即执行一次
		c.clean()

		for {
			select {
			case <-ticker.C:
				c.clean()
			case <-c.done:
				logger.Info().Msg("cleaner stopped")
				return
			}
		}
	}()
}

// Stop 停止清理器
func (c *Cleaner) Stop() {
	close(c.done)
}

// clean 执行清理任务
func (c *Cleaner) clean() {
	logger.Debug().Msg("running cleanup task")

	if err := c.cleanHistories(); err != nil {
		logger.Error().Err(err).Msg("clean alert histories failed")
	}
}

// cleanHistories 清理告警触发历史
// 策略：时间优先（保留窗口外删除），数量兜底（超上限删最旧）
func (c *Cleaner) cleanHistories() error {
	metrics := monitor.GetMetrics()

	// 1. 时间清理：删除保留窗口之前的记录
	cutoff := time.Now().AddDate(0, 0, -c.retentionDays)
	deleted, err := c.histories.DeleteOld(cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		metrics.AddHistoryDeleted(deleted)
		logger.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("cleaned old alert histories by time")
	}

	// 2. 数量检查：超上限时删除最旧的
	if c.maxRows <= 0 {
		return nil
	}
	count, err := c.histories.Count()
	if err != nil {
		return err
	}

	if count > c.maxRows {
		excess := count - c.maxRows
		deleted, err = c.histories.DeleteOldest(excess)
		if err != nil {
			return err
		}
		if deleted > 0 {
			metrics.AddHistoryDeleted(deleted)
			logger.Info().
				Int64("deleted", deleted).
				Int64("total", count).
				Int64("limit", c.maxRows).
				Msg("cleaned excess alert histories by count")
		}
	}

	return nil
}
