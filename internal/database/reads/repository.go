// Package reads provides database operations for the books_users join
// rows that carry per-user reactions.
package reads

import (
	"errors"

	"gorm.io/gorm"

	"github.com/bookwyrm/library/internal/entities"
)

// ListKind selects which of a user's two lists an operation targets:
// the to-read list (reaction == 0) or the rated list (reaction > 0).
type ListKind string

const (
	ReadList  ListKind = "read"
	RatedList ListKind = "book"
)

// ErrInvalidListKind is returned for a ListKind outside the two defined
// values. Unknown kinds fail loudly instead of silently matching nothing.
var ErrInvalidListKind = errors.New("invalid list kind")

// Repository handles all reaction join-row database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new reads repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreate returns the reaction row for (userID, bookID), creating it
// with reaction 0 if absent. The pair carries a unique index; a lost
// insert race re-fetches the winning row.
func (r *Repository) FindOrCreate(userID, bookID uint) (*entities.Read, error) {
	var read entities.Read
	err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&read).Error
	if err == nil {
		return &read, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	read = entities.Read{UserID: userID, BookID: bookID}
	if err := r.db.Create(&read).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing entities.Read
			if err := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &read, nil
}

// SetReaction overwrites the reaction value of a row.
func (r *Repository) SetReaction(id uint, reaction int) error {
	return r.db.Model(&entities.Read{}).
		Where("id = ?", id).
		Update("reaction", reaction).Error
}

// Delete removes the reaction row for (userID, bookID) and reports how
// many rows matched. Zero matches is not an error.
func (r *Repository) Delete(userID, bookID uint) (int64, error) {
	result := r.db.Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&entities.Read{})
	return result.RowsAffected, result.Error
}

// DeleteList bulk-deletes the user's rows on one list, leaving the other
// list untouched.
func (r *Repository) DeleteList(userID uint, kind ListKind) (int64, error) {
	query := r.db.Where("user_id = ?", userID)
	switch kind {
	case ReadList:
		query = query.Where("reaction = 0")
	case RatedList:
		query = query.Where("reaction > 0")
	default:
		return 0, ErrInvalidListKind
	}

	result := query.Delete(&entities.Read{})
	return result.RowsAffected, result.Error
}

// ListForUser returns all reaction rows for a user.
func (r *Repository) ListForUser(userID uint) ([]entities.Read, error) {
	var rows []entities.Read
	err := r.db.Where("user_id = ?", userID).Order("book_id ASC").Find(&rows).Error
	return rows, err
}

// UpdateReactionForBook sets the reaction on every row for the book,
// across all users. Callers that want the usual per-user semantics should
// use UpdateReaction instead.
func (r *Repository) UpdateReactionForBook(bookID uint, reaction int) (int64, error) {
	result := r.db.Model(&entities.Read{}).
		Where("book_id = ?", bookID).
		Update("reaction", reaction)
	return result.RowsAffected, result.Error
}

// UpdateReaction sets the reaction on the single (userID, bookID) row.
func (r *Repository) UpdateReaction(userID, bookID uint, reaction int) (int64, error) {
	result := r.db.Model(&entities.Read{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Update("reaction", reaction)
	return result.RowsAffected, result.Error
}
