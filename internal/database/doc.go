// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations
//	├── users/           # User accounts and email attachment
//	├── authors/         # Author find-or-create
//	├── books/           # Book lookups and ranked aggregate queries
//	└── reads/           # Per-user reaction join rows
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	// Initialize database connection
//	db, err := database.NewDatabase("./library.db")
//
//	// Create domain-specific repositories
//	usersRepo := users.NewRepository(db.DB)
//	booksRepo := books.NewRepository(db.DB)
//
//	// Use repositories
//	user, err := usersRepo.FindOrCreate("amzn1.account.ABC123")
//	ranked, err := booksRepo.TopRated(10)
//
// Most callers should go through library.Service, which composes the
// repositories into the exported operations.
//
// # Find-or-create semantics
//
// Natural keys (authors.name, books title+author, books_users
// user+book, users.amz_auth_id) carry unique indexes. FindOrCreate on
// each repository fetches first, inserts on miss, and re-fetches when
// the insert loses a race and hits the index, so concurrent callers
// converge on a single row.
package database
