package entities

import (
	"time"
)

// User is an application account, created lazily on first sign-in.
// Email is attached once after creation and never overwritten.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AmzAuthID string    `gorm:"column:amz_auth_id;uniqueIndex;size:255" json:"amz_auth_id"`
	Email     *string   `gorm:"size:255" json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Author struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:256" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Book struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:512;uniqueIndex:idx_books_title_author" json:"title"`
	AuthorID  uint      `gorm:"uniqueIndex:idx_books_title_author" json:"author_id"`
	Author    Author    `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Read joins a user to a book with a reaction score.
// Reaction 0 means the book sits on the to-read list; anything above 0 is
// a rating. Reaction is the only field that changes after creation.
type Read struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_books_users_user_book" json:"user_id"`
	BookID    uint      `gorm:"uniqueIndex:idx_books_users_user_book" json:"book_id"`
	Reaction  int       `gorm:"default:0" json:"reaction"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Book      Book      `gorm:"foreignKey:BookID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (Author) TableName() string {
	return "authors"
}

func (Book) TableName() string {
	return "books"
}

func (Read) TableName() string {
	return "books_users"
}
