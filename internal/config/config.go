package config

import (
	"github.com/spf13/viper"
)

type (
	Config struct {
		Database
		Ranking
	}

	Database struct {
		Path string
	}
	Ranking struct {
		// TopBooksLimit caps the anonymous and personalized top-books
		// queries when the caller does not supply a limit.
		TopBooksLimit int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("top_books_limit", 25)

	return &Config{
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Ranking: Ranking{
			TopBooksLimit: v.GetInt("TOP_BOOKS_LIMIT"),
		},
	}
}
