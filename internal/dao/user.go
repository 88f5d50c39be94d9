package dao

import (
	"sync"

	"gorm.io/gorm"

	"github.com/utrading/utrading-market-dashboard/internal/models"
)

type UserDAO struct {
	db *gorm.DB
}

var (
	_user     *UserDAO
	_userOnce sync.Once
)

// NewUserDAO 创建 UserDAO
func NewUserDAO(db *gorm.DB) *UserDAO {
	return &UserDAO{db: db}
}

// InitUserDAO 初始化 UserDAO 单例
func InitUserDAO(db *gorm.DB) {
	_userOnce.Do(func() {
		_user = NewUserDAO(db)
	})
}

// User 获取 UserDAO 单例
func User() *UserDAO {
	return _user
}

// GetByID 按主键查询用户
func (d *UserDAO) GetByID(id uint) (*models.User, error) {
	var u models.User
	if err := d.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Create 创建用户
func (d *UserDAO) Create(u *models.User) error {
	return d.db.Create(u).Error
}
