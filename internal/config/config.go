package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	MongoURI     string
	MongoDB      string
	HomeCurrency string
	Rates        string // e.g. "USD=1,EUR=1.08,GBP=1.27"

	// Digest delivery is optional; leave the token empty to disable it.
	TelegramToken string
	DigestChatID  int64
	DigestUserID  string
}

// Load loads configuration from environment variables
func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it.")
	}

	config := &Config{
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDB:       os.Getenv("MONGODB_DB"),
		HomeCurrency:  os.Getenv("HOME_CURRENCY"),
		Rates:         os.Getenv("CURRENCY_RATES"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DigestUserID:  os.Getenv("DIGEST_USER_ID"),
	}

	if chatIDStr := os.Getenv("DIGEST_CHAT_ID"); chatIDStr != "" {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Fatal("Invalid DIGEST_CHAT_ID:", err)
		}
		config.DigestChatID = chatID
	}

	if config.HomeCurrency == "" {
		config.HomeCurrency = "USD"
	}
	if config.Rates == "" {
		config.Rates = config.HomeCurrency + "=1"
	}

	// Validate required fields
	if config.MongoURI == "" {
		log.Fatal("MONGODB_URI not set")
	}
	if config.MongoDB == "" {
		log.Fatal("MONGODB_DB not set")
	}

	return config
}

// DigestEnabled reports whether the monthly digest is fully configured.
func (c *Config) DigestEnabled() bool {
	return c.TelegramToken != "" && c.DigestChatID != 0 && c.DigestUserID != ""
}
