package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingAllowedOrigins = errors.New("missing-allowed-origins")

type Config struct {
	Port             string
	AllowedOrigins   []string
	Debug            bool
	PostgresURL      string
	QuestionsFile    string
	QuestionsPerGame int
	FeedbackDelay    time.Duration
	RoomIdleTTL      time.Duration
	JanitorSchedule  string
}

// Load reads an optional .env file from the working directory and then the
// process environment. Variables already set in the environment win.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		Port:             "5000",
		QuestionsPerGame: 10,
		FeedbackDelay:    2 * time.Second,
		RoomIdleTTL:      time.Hour,
		JanitorSchedule:  "@every 1m",
	}

	origins, ok := lookup("ALLOWED_ORIGINS")
	if !ok || strings.TrimSpace(origins) == "" {
		return Config{}, ErrMissingAllowedOrigins
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Port = v
	}
	if v, ok := lookup("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("DEBUG: %w", err)
		}
		cfg.Debug = debug
	}
	cfg.PostgresURL, _ = lookup("POSTGRES_URL")
	cfg.QuestionsFile, _ = lookup("QUESTIONS_FILE")

	if v, ok := lookup("QUESTIONS_PER_GAME"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("QUESTIONS_PER_GAME must be a positive integer, got %q", v)
		}
		cfg.QuestionsPerGame = n
	}

	var err error
	if cfg.FeedbackDelay, err = durationVar(lookup, "FEEDBACK_DELAY", cfg.FeedbackDelay); err != nil {
		return Config{}, err
	}
	if cfg.RoomIdleTTL, err = durationVar(lookup, "ROOM_IDLE_TTL", cfg.RoomIdleTTL); err != nil {
		return Config{}, err
	}
	if v, ok := lookup("JANITOR_SCHEDULE"); ok && v != "" {
		cfg.JanitorSchedule = v
	}

	return cfg, nil
}

func durationVar(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, v)
	}
	return d, nil
}
