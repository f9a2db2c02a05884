// Package authors provides database operations for author records.
package authors

import (
	"errors"

	"gorm.io/gorm"

	"github.com/bookwyrm/library/internal/entities"
)

// Repository handles all author database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new authors repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreate returns the author with the given name, creating it if
// absent. Name carries a unique index; a lost insert race re-fetches the
// winning row.
func (r *Repository) FindOrCreate(name string) (*entities.Author, error) {
	var author entities.Author
	err := r.db.Where("name = ?", name).First(&author).Error
	if err == nil {
		return &author, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	author = entities.Author{Name: name}
	if err := r.db.Create(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing entities.Author
			if err := r.db.Where("name = ?", name).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &author, nil
}

// GetByID retrieves an author by id.
func (r *Repository) GetByID(id uint) (*entities.Author, error) {
	var author entities.Author
	err := r.db.First(&author, id).Error
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// ListByIDs retrieves the authors with the given ids.
func (r *Repository) ListByIDs(ids []uint) ([]entities.Author, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var authors []entities.Author
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&authors).Error
	return authors, err
}
