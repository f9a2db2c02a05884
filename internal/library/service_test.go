package library

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bookwyrm/library/internal/config"
	"github.com/bookwyrm/library/internal/database/reads"
	"github.com/bookwyrm/library/internal/database/users"
	"github.com/bookwyrm/library/internal/entities"
)

func setupTestService(t *testing.T) (*gorm.DB, *Service, func()) {
	dbPath := "./test_library_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Author{},
		&entities.Book{},
		&entities.Read{},
	)
	require.NoError(t, err)

	svc := NewService(db, &config.Config{Ranking: config.Ranking{TopBooksLimit: 2}})

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return db, svc, cleanup
}

func signIn(t *testing.T, svc *Service, amzAuthID string) *entities.User {
	user, err := svc.SaveProfile(amzAuthID)
	require.NoError(t, err)
	return user
}

func TestService_AddBook(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")

	result, err := svc.AddBook("Frank Herbert", "Dune", 5, "amzn1.account.ALICE")
	require.NoError(t, err)

	assert.Equal(t, "Dune", result.Book.Title)
	assert.NotZero(t, result.Book.ID)
	assert.Equal(t, "Frank Herbert", result.Author.Name)
	assert.NotZero(t, result.Author.ID)
	assert.Equal(t, 5, result.Reaction)
}

func TestService_AddBook_SummaryCarriesAuthorID(t *testing.T) {
	db, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")

	// Push the book id away from the author id so a mix-up would show.
	require.NoError(t, db.Create(&entities.Book{Title: "Placeholder", AuthorID: 999}).Error)

	result, err := svc.AddBook("Frank Herbert", "Dune", 5, "amzn1.account.ALICE")
	require.NoError(t, err)

	var author entities.Author
	require.NoError(t, db.Where("name = ?", "Frank Herbert").First(&author).Error)
	assert.Equal(t, author.ID, result.Author.ID)
	assert.NotEqual(t, result.Book.ID, result.Author.ID)
}

func TestService_AddBook_UnknownUser(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.AddBook("Frank Herbert", "Dune", 5, "amzn1.account.MISSING")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_AddBook_OverwritesReaction(t *testing.T) {
	db, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")

	_, err := svc.AddBook("Frank Herbert", "Dune", 0, "amzn1.account.ALICE")
	require.NoError(t, err)
	result, err := svc.AddBook("Frank Herbert", "Dune", 4, "amzn1.account.ALICE")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Reaction)

	// Still a single join row
	var count int64
	db.Model(&entities.Read{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestService_AddBookThenGetProfile(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")
	_, err := svc.AddBook("Herbert", "Dune", 5, "amzn1.account.ALICE")
	require.NoError(t, err)

	profile, err := svc.GetProfile(ProfileQuery{AmzAuthID: "amzn1.account.ALICE"})
	require.NoError(t, err)
	require.Len(t, profile.Books, 1)
	assert.Equal(t, "Dune", profile.Books[0].Title)
	assert.Equal(t, "Herbert", profile.Books[0].Author.Name)
	require.NotNil(t, profile.Books[0].Reaction)
	assert.Equal(t, 5, *profile.Books[0].Reaction)
}

func TestService_TopBooks(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")
	signIn(t, svc, "amzn1.account.BOB")

	_, err := svc.AddBook("Frank Herbert", "Dune", 5, "amzn1.account.ALICE")
	require.NoError(t, err)
	_, err = svc.AddBook("Frank Herbert", "Dune", 3, "amzn1.account.BOB")
	require.NoError(t, err)
	_, err = svc.AddBook("Jane Austen", "Emma", 5, "amzn1.account.BOB")
	require.NoError(t, err)
	// To-read entries never rank
	_, err = svc.AddBook("Leo Tolstoy", "War and Peace", 0, "amzn1.account.ALICE")
	require.NoError(t, err)

	top, err := svc.TopBooks(10)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, "Emma", top[0].Title)
	assert.Equal(t, 5.0, top[0].AvgReaction)
	assert.Equal(t, "Jane Austen", top[0].Author.Name)
	assert.Equal(t, "Dune", top[1].Title)
	assert.Equal(t, 4.0, top[1].AvgReaction)
}

func TestService_TopBooks_ZeroLimitUsesConfiguredCap(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")
	for _, title := range []string{"A", "B", "C"} {
		_, err := svc.AddBook("Author "+title, title, 4, "amzn1.account.ALICE")
		require.NoError(t, err)
	}

	// The harness configures a cap of 2
	top, err := svc.TopBooks(0)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestService_TopBooksForUser_ZeroLimitUsesConfiguredCap(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.CROWD")
	for _, title := range []string{"A", "B", "C"} {
		_, err := svc.AddBook("Author "+title, title, 4, "amzn1.account.CROWD")
		require.NoError(t, err)
	}

	top, err := svc.TopBooksForUser(0, "amzn1.account.VIEWER")
	require.NoError(t, err)
	assert.Len(t, top, 2)
	for _, b := range top {
		assert.Equal(t, 4.0, b.AvgReaction)
	}
}

func TestService_TopBooksForUser_KeepsOwnBooksOutsideTopN(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.CROWD")
	for _, title := range []string{"A", "B", "C"} {
		_, err := svc.AddBook("Author "+title, title, 5, "amzn1.account.CROWD")
		require.NoError(t, err)
	}

	signIn(t, svc, "amzn1.account.VIEWER")
	_, err := svc.AddBook("Niche Author", "Obscure Diary", 1, "amzn1.account.VIEWER")
	require.NoError(t, err)

	// Limit of 2 leaves no room for the viewer's low-rated book in the
	// shared ranking, yet it must still be present.
	top, err := svc.TopBooksForUser(2, "amzn1.account.VIEWER")
	require.NoError(t, err)

	titles := make([]string, 0, len(top))
	for _, b := range top {
		titles = append(titles, b.Title)
	}
	assert.Contains(t, titles, "Obscure Diary")
	assert.Len(t, top, 3)
	// The viewer's book scores by their own reaction and sorts last
	assert.Equal(t, "Obscure Diary", top[2].Title)
	assert.Equal(t, 1.0, top[2].AvgReaction)
	require.NotNil(t, top[2].Reaction)
	assert.Equal(t, 1, *top[2].Reaction)
}

func TestService_TopBooksForUser_SubstitutesOwnReaction(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.CROWD")
	_, err := svc.AddBook("Jane Austen", "Emma", 5, "amzn1.account.CROWD")
	require.NoError(t, err)

	signIn(t, svc, "amzn1.account.VIEWER")
	_, err = svc.AddBook("Jane Austen", "Emma", 2, "amzn1.account.VIEWER")
	require.NoError(t, err)

	top, err := svc.TopBooksForUser(10, "amzn1.account.VIEWER")
	require.NoError(t, err)
	require.Len(t, top, 1)

	// The entry keeps the group average for ranking but carries the
	// viewer's own reaction.
	assert.Equal(t, "Emma", top[0].Title)
	assert.Equal(t, 5.0, top[0].AvgReaction)
	require.NotNil(t, top[0].Reaction)
	assert.Equal(t, 2, *top[0].Reaction)
}

func TestService_TopBooksForUser_CreatesViewer(t *testing.T) {
	db, svc, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.TopBooksForUser(10, "amzn1.account.NEW")
	require.NoError(t, err)

	var count int64
	db.Model(&entities.User{}).Where("amz_auth_id = ?", "amzn1.account.NEW").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestService_DeleteBook(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")
	_, err := svc.AddBook("Herbert", "Dune", 5, "amzn1.account.ALICE")
	require.NoError(t, err)

	deleted, err := svc.DeleteBook("Dune", "amzn1.account.ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	profile, err := svc.GetProfile(ProfileQuery{AmzAuthID: "amzn1.account.ALICE"})
	require.NoError(t, err)
	assert.Empty(t, profile.Books)
}

func TestService_DeleteBook_ZeroMatchesIsSuccess(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	// Neither the user nor the book exists
	deleted, err := svc.DeleteBook("Missing", "amzn1.account.MISSING")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestService_EmptyBookList(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")
	_, err := svc.AddBook("Herbert", "Dune", 5, "amzn1.account.ALICE")
	require.NoError(t, err)
	_, err = svc.AddBook("Austen", "Emma", 0, "amzn1.account.ALICE")
	require.NoError(t, err)
	_, err = svc.AddBook("Tolstoy", "War and Peace", 0, "amzn1.account.ALICE")
	require.NoError(t, err)

	deleted, err := svc.EmptyBookList("amzn1.account.ALICE", reads.ReadList)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// Rated entries survive emptying the to-read list
	profile, err := svc.GetProfile(ProfileQuery{AmzAuthID: "amzn1.account.ALICE"})
	require.NoError(t, err)
	require.Len(t, profile.Books, 1)
	assert.Equal(t, "Dune", profile.Books[0].Title)

	deleted, err = svc.EmptyBookList("amzn1.account.ALICE", reads.RatedList)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestService_EmptyBookList_InvalidKind(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")

	_, err := svc.EmptyBookList("amzn1.account.ALICE", reads.ListKind("bogus"))
	assert.ErrorIs(t, err, reads.ErrInvalidListKind)
}

func TestService_EmptyBookList_UnknownUser(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.EmptyBookList("amzn1.account.MISSING", reads.ReadList)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_GetProfile_ByInternalID(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	user := signIn(t, svc, "amzn1.account.ALICE")
	signIn(t, svc, "amzn1.account.BOB")

	// Internal id wins over a conflicting auth id
	profile, err := svc.GetProfile(ProfileQuery{UserID: user.ID, AmzAuthID: "amzn1.account.BOB"})
	require.NoError(t, err)
	assert.Equal(t, "amzn1.account.ALICE", profile.User.AmzAuthID)
}

func TestService_GetProfile_UnknownUser(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.GetProfile(ProfileQuery{AmzAuthID: "amzn1.account.MISSING"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_SaveProfile_Idempotent(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	first := signIn(t, svc, "amzn1.account.ALICE")
	second := signIn(t, svc, "amzn1.account.ALICE")
	assert.Equal(t, first.ID, second.ID)
}

func TestService_InsertEmail(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")

	status, err := svc.InsertEmail("amzn1.account.ALICE", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, users.EmailInserted, status)

	status, err = svc.InsertEmail("amzn1.account.ALICE", "other@example.com")
	require.NoError(t, err)
	assert.Equal(t, users.EmailAlreadyPresent, status)
}

func TestService_UserBooksByEmail(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")
	_, err := svc.InsertEmail("amzn1.account.ALICE", "alice@example.com")
	require.NoError(t, err)

	_, err = svc.AddBook("Frank Herbert", "Dune", 5, "amzn1.account.ALICE")
	require.NoError(t, err)
	_, err = svc.AddBook("Frank Herbert", "Dune Messiah", 3, "amzn1.account.ALICE")
	require.NoError(t, err)
	_, err = svc.AddBook("Jane Austen", "Emma", 0, "amzn1.account.ALICE")
	require.NoError(t, err)

	result, err := svc.UserBooksByEmail("alice@example.com")
	require.NoError(t, err)
	require.Len(t, result.Books, 3)

	byTitle := make(map[string]ReadBook)
	for _, b := range result.Books {
		byTitle[b.Title] = b
	}
	require.NotNil(t, byTitle["Dune"].Reaction)
	assert.Equal(t, 5, *byTitle["Dune"].Reaction)
	require.NotNil(t, byTitle["Emma"].Reaction)
	assert.Equal(t, 0, *byTitle["Emma"].Reaction)

	// Authors come back as a flat, deduplicated list
	require.Len(t, result.Authors, 2)
	names := []string{result.Authors[0].Name, result.Authors[1].Name}
	assert.Contains(t, names, "Frank Herbert")
	assert.Contains(t, names, "Jane Austen")
}

func TestService_UserBooksByEmail_UnknownEmail(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.UserBooksByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_UpdateUserBookReactionThenGetProfile(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	alice := signIn(t, svc, "amzn1.account.ALICE")
	bob := signIn(t, svc, "amzn1.account.BOB")

	result, err := svc.AddBook("Herbert", "Dune", 2, "amzn1.account.ALICE")
	require.NoError(t, err)
	_, err = svc.AddBook("Herbert", "Dune", 4, "amzn1.account.BOB")
	require.NoError(t, err)

	updated, err := svc.UpdateUserBookReaction(alice.ID, result.Book.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	profile, err := svc.GetProfile(ProfileQuery{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, profile.Books, 1)
	require.NotNil(t, profile.Books[0].Reaction)
	assert.Equal(t, 5, *profile.Books[0].Reaction)

	// Bob's reaction is untouched by the scoped update
	bobProfile, err := svc.GetProfile(ProfileQuery{UserID: bob.ID})
	require.NoError(t, err)
	require.Len(t, bobProfile.Books, 1)
	assert.Equal(t, 4, *bobProfile.Books[0].Reaction)
}

func TestService_UpdateBookReaction_TouchesAllUsers(t *testing.T) {
	_, svc, cleanup := setupTestService(t)
	defer cleanup()

	signIn(t, svc, "amzn1.account.ALICE")
	signIn(t, svc, "amzn1.account.BOB")

	result, err := svc.AddBook("Herbert", "Dune", 2, "amzn1.account.ALICE")
	require.NoError(t, err)
	_, err = svc.AddBook("Herbert", "Dune", 4, "amzn1.account.BOB")
	require.NoError(t, err)

	updated, err := svc.UpdateBookReaction(result.Book.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
}
