package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/chris/mochi/internal/care"
)

type Config struct {
	DiscordToken string
	StatePath    string
	PetName      string

	FeedThresholdHours  float64
	DrinkThresholdHours float64
	SleepThresholdHours float64

	CheckInterval  time.Duration
	NotifyCooldown time.Duration // 0 = re-notify on every check while overdue
}

func Load() *Config {
	_ = godotenv.Load() // ignore error if no .env

	return &Config{
		DiscordToken:        os.Getenv("DISCORD_BOT_TOKEN"),
		StatePath:           envOr("STATE_PATH", "./state.json"),
		PetName:             envOr("PET_NAME", "Mochi"),
		FeedThresholdHours:  envFloat("FEED_THRESHOLD_HOURS", 6),
		DrinkThresholdHours: envFloat("DRINK_THRESHOLD_HOURS", 4),
		SleepThresholdHours: envFloat("SLEEP_THRESHOLD_HOURS", 18),
		CheckInterval:       envDuration("CHECK_INTERVAL", 30*time.Minute),
		NotifyCooldown:      envDuration("CARE_NOTIFY_COOLDOWN", 0),
	}
}

func (c *Config) Thresholds() care.Thresholds {
	return care.Thresholds{
		Feed:  c.FeedThresholdHours,
		Drink: c.DrinkThresholdHours,
		Sleep: c.SleepThresholdHours,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}
