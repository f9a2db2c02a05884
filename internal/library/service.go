// Package library composes the database repositories into the operations
// the web layer calls: recording reads, ranked book listings, profile and
// list management.
package library

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/bookwyrm/library/internal/config"
	"github.com/bookwyrm/library/internal/database/authors"
	"github.com/bookwyrm/library/internal/database/books"
	"github.com/bookwyrm/library/internal/database/reads"
	"github.com/bookwyrm/library/internal/database/users"
	"github.com/bookwyrm/library/internal/entities"
)

// ErrUserNotFound is returned when an operation requires an existing user
// and none matches the given identity.
var ErrUserNotFound = errors.New("user not found")

// AuthorInfo is the nested author shape of the JSON payloads.
type AuthorInfo struct {
	ID   uint   `json:"id,omitempty"`
	Name string `json:"name"`
}

// BookSummary is one entry of a ranked or profile book listing.
// AvgReaction is the effective score: the group average when one was
// computed, otherwise the viewing user's own reaction.
type BookSummary struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Author      AuthorInfo `json:"author"`
	AvgReaction float64    `json:"avgReaction"`
	Reaction    *int       `json:"reaction,omitempty"`
}

// AddBookResult summarizes a recorded read.
type AddBookResult struct {
	Book     BookRef    `json:"book"`
	Author   AuthorInfo `json:"author"`
	Reaction int        `json:"reaction"`
}

type BookRef struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// Profile is a user together with every book on their lists.
type Profile struct {
	User  *entities.User `json:"user"`
	Books []BookSummary  `json:"books"`
}

// ProfileQuery identifies a user by internal id or external auth id.
// When both are set, the internal id wins.
type ProfileQuery struct {
	UserID    uint
	AmzAuthID string
}

// ReadBook is a book annotated with the owning user's reaction. Authors
// are not nested here; UserBooks carries them as a flat list.
type ReadBook struct {
	entities.Book
	Reaction *int `json:"reaction,omitempty"`
}

// UserBooks is the by-email listing: the user's books plus the referenced
// authors.
type UserBooks struct {
	Books   []ReadBook        `json:"books"`
	Authors []entities.Author `json:"authors"`
}

// DefaultTopBooksLimit caps the ranking queries when neither the caller
// nor the configuration supplies a limit.
const DefaultTopBooksLimit = 25

// Service wires the repositories together. One instance serves all
// requests; gorm connections are safe for concurrent use.
type Service struct {
	users   *users.Repository
	authors *authors.Repository
	books   *books.Repository
	reads   *reads.Repository

	topBooksLimit int
}

// NewService creates a service over an open database connection. The
// ranking cap comes from cfg; a nil or unset config falls back to
// DefaultTopBooksLimit.
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	limit := DefaultTopBooksLimit
	if cfg != nil && cfg.TopBooksLimit > 0 {
		limit = cfg.TopBooksLimit
	}
	return &Service{
		users:         users.NewRepository(db),
		authors:       authors.NewRepository(db),
		books:         books.NewRepository(db),
		reads:         reads.NewRepository(db),
		topBooksLimit: limit,
	}
}

// effectiveLimit resolves the caller's limit, substituting the configured
// cap when none is given.
func (s *Service) effectiveLimit(limit int) int {
	if limit > 0 {
		return limit
	}
	return s.topBooksLimit
}

// AddBook records a reaction for a user: the author and book are created
// on first mention, the user must already exist. The steps run
// sequentially and are not atomic; a failure partway may leave the author
// or book committed without a reaction row.
func (s *Service) AddBook(authorName, title string, reaction int, amzAuthID string) (*AddBookResult, error) {
	author, err := s.authors.FindOrCreate(authorName)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create author: %w", err)
	}

	book, err := s.books.FindOrCreate(title, author.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create book: %w", err)
	}

	user, err := s.users.GetByAmzAuthID(amzAuthID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	read, err := s.reads.FindOrCreate(user.ID, book.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create read: %w", err)
	}

	if err := s.reads.SetReaction(read.ID, reaction); err != nil {
		return nil, fmt.Errorf("failed to set reaction: %w", err)
	}

	return &AddBookResult{
		Book:     BookRef{ID: book.ID, Title: book.Title},
		Author:   AuthorInfo{ID: author.ID, Name: author.Name},
		Reaction: reaction,
	}, nil
}

// TopBooks returns up to limit books ranked by average reaction across
// all users, highest first. A limit of 0 or below means the configured
// cap.
func (s *Service) TopBooks(limit int) ([]BookSummary, error) {
	ranked, err := s.books.TopRated(s.effectiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query top books: %w", err)
	}
	return toSummaries(ranked), nil
}

// TopBooksForUser returns the ranked listing personalized for one viewer:
// books the viewer has rated carry the viewer's own reaction, and every
// book on the viewer's lists appears even when its average would fall
// outside the top limit. The viewer is created on first sight. The
// viewer's list is unbounded, so a very large personal list dominates the
// result. A limit of 0 or below means the configured cap.
func (s *Service) TopBooksForUser(limit int, amzAuthID string) ([]BookSummary, error) {
	limit = s.effectiveLimit(limit)

	user, err := s.users.FindOrCreate(amzAuthID)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create user: %w", err)
	}

	// The two queries are independent reads.
	var ranked, mine []books.RankedBook
	var g errgroup.Group
	g.Go(func() error {
		var err error
		ranked, err = s.books.TopRatedExcludingUser(limit, user.ID)
		if err != nil {
			return fmt.Errorf("failed to query top books: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		mine, err = s.books.ListForUser(user.ID)
		if err != nil {
			return fmt.Errorf("failed to query user books: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeRanked(ranked, mine)
	return toSummaries(merged), nil
}

// mergeRanked folds the viewer's own books into the ranked set. A book
// present in both keeps the group average computed by the ranked query;
// a book only the viewer knows scores by the viewer's reaction.
func mergeRanked(ranked, mine []books.RankedBook) []books.RankedBook {
	mineByID := make(map[uint]int, len(mine))
	for i := range mine {
		mineByID[mine[i].ID] = i
	}

	var merged []books.RankedBook
	for _, b := range ranked {
		if i, ok := mineByID[b.ID]; ok {
			mine[i].AvgReaction = b.AvgReaction
			continue
		}
		merged = append(merged, b)
	}
	merged = append(merged, mine...)

	for i := range merged {
		if merged[i].AvgReaction == nil && merged[i].Reaction != nil {
			avg := float64(*merged[i].Reaction)
			merged[i].AvgReaction = &avg
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		si, sj := score(merged[i]), score(merged[j])
		if si != sj {
			return si > sj
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}

func score(b books.RankedBook) float64 {
	if b.AvgReaction == nil {
		return 0
	}
	return *b.AvgReaction
}

func toSummaries(ranked []books.RankedBook) []BookSummary {
	summaries := make([]BookSummary, 0, len(ranked))
	for _, b := range ranked {
		summaries = append(summaries, BookSummary{
			ID:          b.ID,
			Title:       b.Title,
			Author:      AuthorInfo{ID: b.AuthorID, Name: b.AuthorName},
			AvgReaction: score(b),
			Reaction:    b.Reaction,
		})
	}
	return summaries
}

// DeleteBook removes the user's reaction row for the book with the given
// title and reports how many rows matched. A missing user, missing book,
// or already-absent row all count as zero matches, not errors.
func (s *Service) DeleteBook(title, amzAuthID string) (int64, error) {
	user, err := s.users.GetByAmzAuthID(amzAuthID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}

	book, err := s.books.GetByTitle(title)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to look up book: %w", err)
	}

	deleted, err := s.reads.Delete(user.ID, book.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete read: %w", err)
	}
	return deleted, nil
}

// EmptyBookList bulk-deletes one of the user's lists and reports how many
// rows went. The kind is a closed set; anything else fails with
// reads.ErrInvalidListKind.
func (s *Service) EmptyBookList(amzAuthID string, kind reads.ListKind) (int64, error) {
	user, err := s.users.GetByAmzAuthID(amzAuthID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}

	deleted, err := s.reads.DeleteList(user.ID, kind)
	if err != nil {
		if errors.Is(err, reads.ErrInvalidListKind) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to empty list: %w", err)
	}
	return deleted, nil
}

// SaveProfile returns the user for the given external auth id, creating
// the account on first sign-in.
func (s *Service) SaveProfile(amzAuthID string) (*entities.User, error) {
	user, err := s.users.FindOrCreate(amzAuthID)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create user: %w", err)
	}
	return user, nil
}

// GetProfile resolves the user and returns every book on their lists,
// annotated with their reaction and ordered by book id.
func (s *Service) GetProfile(q ProfileQuery) (*Profile, error) {
	var user *entities.User
	var err error
	if q.UserID != 0 {
		user, err = s.users.GetByID(q.UserID)
	} else {
		user, err = s.users.GetByAmzAuthID(q.AmzAuthID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ranked, err := s.books.ListForUserWithAverage(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile books: %w", err)
	}

	return &Profile{User: user, Books: toSummaries(ranked)}, nil
}

// InsertEmail attaches an email to the user with the given external auth
// id. An email already on file is left untouched and reported as
// users.EmailAlreadyPresent.
func (s *Service) InsertEmail(amzAuthID, email string) (users.EmailStatus, error) {
	status, err := s.users.InsertEmail(amzAuthID, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to insert email: %w", err)
	}
	return status, nil
}

// UserBooksByEmail returns the books of the user with the given email,
// each annotated with the user's reaction, plus the referenced authors as
// a flat list. Every stage's failure propagates to the caller.
func (s *Service) UserBooksByEmail(email string) (*UserBooks, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	rows, err := s.reads.ListForUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reads: %w", err)
	}

	bookIDs := make([]uint, 0, len(rows))
	reactions := make(map[uint]int, len(rows))
	for _, row := range rows {
		bookIDs = append(bookIDs, row.BookID)
		reactions[row.BookID] = row.Reaction
	}

	bks, err := s.books.ListByIDs(bookIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}

	result := &UserBooks{Books: make([]ReadBook, 0, len(bks))}
	authorIDs := make([]uint, 0, len(bks))
	seen := make(map[uint]bool, len(bks))
	for _, b := range bks {
		rb := ReadBook{Book: b}
		if reaction, ok := reactions[b.ID]; ok {
			r := reaction
			rb.Reaction = &r
		}
		result.Books = append(result.Books, rb)
		if !seen[b.AuthorID] {
			seen[b.AuthorID] = true
			authorIDs = append(authorIDs, b.AuthorID)
		}
	}

	result.Authors, err = s.authors.ListByIDs(authorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query authors: %w", err)
	}
	return result, nil
}

// UpdateBookReaction sets the reaction on every row for the book, across
// all users, and reports how many rows changed.
func (s *Service) UpdateBookReaction(bookID uint, reaction int) (int64, error) {
	updated, err := s.reads.UpdateReactionForBook(bookID, reaction)
	if err != nil {
		return 0, fmt.Errorf("failed to update reaction: %w", err)
	}
	return updated, nil
}

// UpdateUserBookReaction sets the reaction on the single (user, book)
// row and reports whether one matched.
func (s *Service) UpdateUserBookReaction(userID, bookID uint, reaction int) (int64, error) {
	updated, err := s.reads.UpdateReaction(userID, bookID, reaction)
	if err != nil {
		return 0, fmt.Errorf("failed to update reaction: %w", err)
	}
	return updated, nil
}
