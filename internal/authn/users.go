package authn

import (
	"context"
	"errors"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"

	"gorm.io/gorm"
)

// Users resolves the User identity behind a request's plain username field,
// creating it on first reference (§3: "Created on first reference; never
// deleted by the core").
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (u *Users) GetOrCreate(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}

	var user models.User
	err := u.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{Username: username, DisplayName: username}
	if err := u.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Concurrent first-reference race: someone else created it first.
		var existing models.User
		if findErr := u.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error; findErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &user, nil
}
