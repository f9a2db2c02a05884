// Package books provides database operations for book records and the
// ranked aggregate queries behind the top-books listings.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	ranked, err := repo.TopRated(10)
package books

import (
	"errors"

	"gorm.io/gorm"

	"github.com/bookwyrm/library/internal/entities"
)

// RankedBook is a book row annotated with data from the books_users and
// authors joins. AvgReaction is nil on rows produced by queries that do
// not aggregate; Reaction is nil when the query carries no per-user
// reaction column.
type RankedBook struct {
	ID          uint
	Title       string
	AuthorID    uint
	AuthorName  string
	AvgReaction *float64
	Reaction    *int
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreate returns the book with the given title and author, creating
// it if absent. The (title, author_id) pair carries a unique index; a lost
// insert race re-fetches the winning row.
func (r *Repository) FindOrCreate(title string, authorID uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("title = ? AND author_id = ?", title, authorID).First(&book).Error
	if err == nil {
		return &book, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	book = entities.Book{Title: title, AuthorID: authorID}
	if err := r.db.Create(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing entities.Book
			if err := r.db.Where("title = ? AND author_id = ?", title, authorID).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &book, nil
}

// GetByTitle retrieves a book by title. Titles are assumed unique; when
// they are not, the lowest id wins.
func (r *Repository) GetByTitle(title string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("title = ?", title).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByID retrieves a book by id.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ListByIDs retrieves the books with the given ids, ordered by id.
func (r *Repository) ListByIDs(ids []uint) ([]entities.Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var books []entities.Book
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&books).Error
	return books, err
}

// TopRated returns up to limit books ranked by average reaction across
// all users, highest first (book id breaks ties). Only rows with a
// positive reaction count toward the average, so to-read entries never
// rank.
func (r *Repository) TopRated(limit int) ([]RankedBook, error) {
	var ranked []RankedBook
	err := r.rankedQuery().
		Limit(limit).
		Scan(&ranked).Error
	return ranked, err
}

// TopRatedExcludingUser is TopRated with the given user's reaction rows
// left out of the aggregation, so the caller can substitute the user's
// own reactions afterwards.
func (r *Repository) TopRatedExcludingUser(limit int, userID uint) ([]RankedBook, error) {
	var ranked []RankedBook
	err := r.rankedQuery().
		Not("books_users.user_id = ?", userID).
		Limit(limit).
		Scan(&ranked).Error
	return ranked, err
}

func (r *Repository) rankedQuery() *gorm.DB {
	return r.db.Table("books").
		Select("books.id, books.title, books.author_id, authors.name AS author_name, AVG(books_users.reaction) AS avg_reaction").
		Joins("INNER JOIN books_users ON books_users.book_id = books.id").
		Joins("INNER JOIN authors ON authors.id = books.author_id").
		Where("books_users.reaction > 0").
		Group("books.id").
		Order("avg_reaction DESC, books.id ASC")
}

// ListForUser returns every book the user has a reaction row for, with
// the user's own reaction and the author name. Unbounded: a user with a
// very large personal list gets it all.
func (r *Repository) ListForUser(userID uint) ([]RankedBook, error) {
	var ranked []RankedBook
	err := r.db.Table("books").
		Select("books.id, books.title, books.author_id, authors.name AS author_name, books_users.reaction AS reaction").
		Joins("INNER JOIN books_users ON books_users.book_id = books.id").
		Joins("INNER JOIN authors ON authors.id = books.author_id").
		Where("books_users.user_id = ?", userID).
		Group("books.id").
		Scan(&ranked).Error
	return ranked, err
}

// ListForUserWithAverage is ListForUser plus the average over the user's
// own rows, ordered by book id ascending. Backs the profile listing.
func (r *Repository) ListForUserWithAverage(userID uint) ([]RankedBook, error) {
	var ranked []RankedBook
	err := r.db.Table("books").
		Select("books.id, books.title, books.author_id, authors.name AS author_name, books_users.reaction AS reaction, AVG(books_users.reaction) AS avg_reaction").
		Joins("INNER JOIN books_users ON books_users.book_id = books.id").
		Joins("INNER JOIN authors ON authors.id = books.author_id").
		Where("books_users.user_id = ?", userID).
		Group("books.id").
		Order("books.id ASC").
		Scan(&ranked).Error
	return ranked, err
}
