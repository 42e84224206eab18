package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration. It is constructed once at
// startup and passed by reference into every component that needs it.
type Config struct {
	TelegramToken string
	AdminIDs      map[int64]bool

	CaptchaEnabled bool
	CaptchaTimeout time.Duration

	// WelcomeMessage is the default greeting template ({username} is
	// replaced with the member's full name). The operator can override it
	// at runtime through the admin menu; this value seeds the setting.
	WelcomeMessage string

	TestMode bool

	DatabasePath string
	ExportDir    string

	UseMockDB bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{
		AdminIDs:       make(map[int64]bool),
		CaptchaTimeout: 5 * time.Minute,
		DatabasePath:   "surveybot.db",
		ExportDir:      "data",
	}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Admin user IDs (required)
	adminIDsStr := os.Getenv("ADMIN_IDS")
	if adminIDsStr == "" {
		return nil, fmt.Errorf("ADMIN_IDS is required (comma-separated list of Telegram user IDs)")
	}
	for _, idStr := range strings.Split(adminIDsStr, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID in ADMIN_IDS: %s", idStr)
		}
		config.AdminIDs[id] = true
	}

	config.CaptchaEnabled = os.Getenv("CAPTCHA_ENABLED") == "true"
	if timeoutStr := os.Getenv("CAPTCHA_TIMEOUT_MINUTES"); timeoutStr != "" {
		minutes, err := strconv.Atoi(timeoutStr)
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("invalid CAPTCHA_TIMEOUT_MINUTES: %s", timeoutStr)
		}
		config.CaptchaTimeout = time.Duration(minutes) * time.Minute
	}

	config.WelcomeMessage = os.Getenv("WELCOME_MESSAGE")
	if config.WelcomeMessage == "" {
		config.WelcomeMessage = "Welcome, {username}!"
	}

	config.TestMode = os.Getenv("TEST_MODE") == "true"

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		config.DatabasePath = path
	}
	if dir := os.Getenv("EXPORT_DIR"); dir != "" {
		config.ExportDir = dir
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	return config, nil
}

// IsAdmin reports whether the user may use administrative functions.
func (c *Config) IsAdmin(userID int64) bool {
	return c.AdminIDs[userID]
}
