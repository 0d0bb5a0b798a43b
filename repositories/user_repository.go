package repositories

import (
	"context"

	"github.com/Reutertu3/lolisafe/models"

	"gorm.io/gorm"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) GetByID(ctx context.Context, tx *gorm.DB, userID uint) (models.User, error) {
	var user models.User
	err := useTx(r.db, tx).WithContext(ctx).First(&user, userID).Error
	return user, err
}

func (r *GormUserRepository) IDsByUsernames(ctx context.Context, tx *gorm.DB, usernames []string) (map[string]uint, error) {
	ids := make(map[string]uint, len(usernames))
	if len(usernames) == 0 {
		return ids, nil
	}

	var users []models.User
	err := useTx(r.db, tx).WithContext(ctx).
		Where("username IN ?", usernames).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		ids[user.Username] = user.ID
	}
	return ids, nil
}

func (r *GormUserRepository) NamesByIDs(ctx context.Context, tx *gorm.DB, userIDs []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	var users []models.User
	err := useTx(r.db, tx).WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		names[user.ID] = user.Username
	}
	return names, nil
}
