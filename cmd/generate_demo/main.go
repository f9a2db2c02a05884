// Command generate_demo creates a demo database with sample readers and
// public domain books.
// Usage: go run cmd/generate_demo/main.go [-db path/to/demo.db]
package main

import (
	"flag"
	"log"
	"os"

	"github.com/bookwyrm/library/internal/config"
	"github.com/bookwyrm/library/internal/database"
	"github.com/bookwyrm/library/internal/library"
)

const defaultDemoDatabasePath = "./demo/demo.db"

type demoRead struct {
	Author   string
	Title    string
	Reaction int
}

type demoUser struct {
	AmzAuthID string
	Email     string
	Reads     []demoRead
}

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	cfg := config.NewConfig()
	svc := library.NewService(db.DB, cfg)

	for _, u := range demoUsers() {
		user, err := svc.SaveProfile(u.AmzAuthID)
		if err != nil {
			log.Fatalf("Failed to create user %s: %v", u.AmzAuthID, err)
		}

		if u.Email != "" {
			if _, err := svc.InsertEmail(u.AmzAuthID, u.Email); err != nil {
				log.Printf("Failed to set email for %s: %v", u.AmzAuthID, err)
			}
		}

		for _, rd := range u.Reads {
			if _, err := svc.AddBook(rd.Author, rd.Title, rd.Reaction, u.AmzAuthID); err != nil {
				log.Printf("Failed to add book %s for %s: %v", rd.Title, u.AmzAuthID, err)
				continue
			}
		}
		log.Printf("Seeded user %d with %d books", user.ID, len(u.Reads))
	}

	top, err := svc.TopBooks(cfg.TopBooksLimit)
	if err != nil {
		log.Fatalf("Failed to query top books: %v", err)
	}
	for i, b := range top {
		log.Printf("#%d %s by %s (avg %.1f)", i+1, b.Title, b.Author.Name, b.AvgReaction)
	}

	log.Println("Demo database generated successfully!")
}

func demoUsers() []demoUser {
	return []demoUser{
		{
			AmzAuthID: "amzn1.account.DEMO_ALICE",
			Email:     "alice@example.com",
			Reads: []demoRead{
				{"Fyodor Dostoevsky", "Crime and Punishment", 5},
				{"Jane Austen", "Pride and Prejudice", 4},
				{"Herman Melville", "Moby-Dick", 3},
				{"Marcus Aurelius", "Meditations", 5},
				{"Mary Shelley", "Frankenstein", 0}, // on the to-read list
			},
		},
		{
			AmzAuthID: "amzn1.account.DEMO_BOB",
			Email:     "bob@example.com",
			Reads: []demoRead{
				{"Jane Austen", "Pride and Prejudice", 5},
				{"Herman Melville", "Moby-Dick", 2},
				{"Charles Dickens", "Great Expectations", 4},
				{"Leo Tolstoy", "War and Peace", 0},
			},
		},
		{
			AmzAuthID: "amzn1.account.DEMO_CAROL",
			Reads: []demoRead{
				{"Fyodor Dostoevsky", "Crime and Punishment", 4},
				{"Charles Dickens", "Great Expectations", 3},
				{"Homer", "The Odyssey", 5},
			},
		},
	}
}
