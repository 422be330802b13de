package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"meme-party/internal/game"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"false"`

	Rounds              int `env:"ROUNDS" envDefault:"3"`
	CreationSeconds     int `env:"CREATION_SECONDS" envDefault:"90"`
	VoteSeconds         int `env:"VOTE_SECONDS" envDefault:"20"`
	ResultsSeconds      int `env:"RESULTS_SECONDS" envDefault:"10"`
	FinalResultsSeconds int `env:"FINAL_RESULTS_SECONDS" envDefault:"10"`

	TemplateChoices int    `env:"TEMPLATE_CHOICES" envDefault:"5"`
	TemplatesFile   string `env:"TEMPLATES_FILE" envDefault:"templates.csv"`

	SchedulerStrategy string        `env:"SCHEDULER_STRATEGY" envDefault:"timer"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	CleanupAfter      time.Duration `env:"CLEANUP_AFTER" envDefault:"24h"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"1m"`

	OTELEndpoint string `env:"OTEL_ENDPOINT"`
	OTELEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Default returns the configuration with every key unset.
func Default() Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load parses the process environment on top of the defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.GameConfig().Validate(); err != nil {
		return fmt.Errorf("game defaults: %w", err)
	}
	if _, err := game.ParseStrategy(c.SchedulerStrategy); err != nil {
		return err
	}
	if c.TemplateChoices < 1 {
		return fmt.Errorf("TEMPLATE_CHOICES must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.CleanupAfter <= 0 || c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_AFTER and CLEANUP_INTERVAL must be positive")
	}
	return nil
}

// GameConfig is the session configuration used when a host does not
// override it.
func (c Config) GameConfig() game.Config {
	return game.Config{
		RoundCount:           c.Rounds,
		CreationDuration:     time.Duration(c.CreationSeconds) * time.Second,
		VoteDurationPerEntry: time.Duration(c.VoteSeconds) * time.Second,
		ResultsDuration:      time.Duration(c.ResultsSeconds) * time.Second,
		FinalResultsDuration: time.Duration(c.FinalResultsSeconds) * time.Second,
	}
}

func (c Config) Addr() string {
	return ":" + c.Port
}
