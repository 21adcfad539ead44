package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"quillpost/internal/auth"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr        string
		CORSOrigins []string
	}
	Log struct {
		Level string
	}
	Database struct {
		URL string
	}
	Auth struct {
		JWTSecret         string
		Algorithm         string
		TokenTTLMinutes   int
		BcryptCost        int
		SuperuserEmail    string
		SuperuserPassword string
	}
	Feed struct {
		Title       string
		Link        string
		Description string
		Limit       int
		Key         string
	}
	Storage struct {
		Bucket   string
		Region   string
		Endpoint string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
// Values from .env never override variables already set in the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.corsorigins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("database.url", "data/quillpost.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.tokenttlminutes", 30)
	v.SetDefault("auth.bcryptcost", 0)
	v.SetDefault("auth.superuseremail", "")
	v.SetDefault("auth.superuserpassword", "")
	v.SetDefault("feed.title", "quillpost")
	v.SetDefault("feed.link", "http://localhost:8000")
	v.SetDefault("feed.description", "Latest posts")
	v.SetDefault("feed.limit", 20)
	v.SetDefault("feed.key", "rss.xml")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// comma separated lists arrive from the environment as a single string
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	return cfg, nil
}

// Validate reports the first unusable setting. Auth problems come back as *auth.ConfigurationError.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database url is required")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if err := c.TokenConfig().Validate(); err != nil {
		return err
	}
	if (c.Auth.SuperuserEmail == "") != (c.Auth.SuperuserPassword == "") {
		return &auth.ConfigurationError{Field: "superuser", Reason: "email and password must be set together"}
	}
	return nil
}

// TokenConfig is the signing configuration shared by issuer and verifier.
func (c Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:    []byte(strings.TrimSpace(c.Auth.JWTSecret)),
		Algorithm: strings.ToUpper(strings.TrimSpace(c.Auth.Algorithm)),
		TTL:       time.Duration(c.Auth.TokenTTLMinutes) * time.Minute,
	}
}

func (c Config) HasherConfig() auth.HasherConfig {
	return auth.HasherConfig{Cost: c.Auth.BcryptCost}
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
