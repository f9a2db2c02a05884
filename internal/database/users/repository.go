// Package users provides database operations for user accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.FindOrCreate(amzAuthID)
package users

import (
	"errors"

	"gorm.io/gorm"

	"github.com/bookwyrm/library/internal/entities"
)

// EmailStatus reports the outcome of InsertEmail. Attaching an email to a
// user that already has one is a normal outcome, not an error.
type EmailStatus string

const (
	EmailInserted       EmailStatus = "inserted"
	EmailAlreadyPresent EmailStatus = "already_present"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreate returns the user with the given external auth id, creating
// it if absent. A create that loses the insert race against the unique
// index re-fetches the winning row.
func (r *Repository) FindOrCreate(amzAuthID string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("amz_auth_id = ?", amzAuthID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = entities.User{AmzAuthID: amzAuthID}
	if err := r.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing entities.User
			if err := r.db.Where("amz_auth_id = ?", amzAuthID).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByAmzAuthID retrieves a user by external auth id.
func (r *Repository) GetByAmzAuthID(amzAuthID string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("amz_auth_id = ?", amzAuthID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by internal id.
func (r *Repository) GetByID(id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email address.
func (r *Repository) GetByEmail(email string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// InsertEmail sets the user's email if it is not set yet. An email that is
// already present is left untouched and reported as EmailAlreadyPresent.
// The update is guarded by the column being null, so a concurrent caller
// that set the email first is never overwritten.
func (r *Repository) InsertEmail(amzAuthID, email string) (EmailStatus, error) {
	var user entities.User
	if err := r.db.Where("amz_auth_id = ?", amzAuthID).First(&user).Error; err != nil {
		return "", err
	}

	result := r.db.Model(&entities.User{}).
		Where("amz_auth_id = ? AND email IS NULL", amzAuthID).
		Update("email", email)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return EmailAlreadyPresent, nil
	}
	return EmailInserted, nil
}
