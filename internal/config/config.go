package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server holds the HTTP settings shared by both processes.
type Server struct {
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	RequestTimeout   time.Duration
	ShutdownTimeout  time.Duration
	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
	LogLevel         string
	LogFormat        string
}

// ConsoleConfig configures the admin console gateway.
type ConsoleConfig struct {
	Server

	Production        bool
	IdentitySignInURL string
	IdentityTokenURL  string
	IdentityAPIKey    string
	BackendURL        string
	CallTimeout       time.Duration
	RefreshInterval   time.Duration
	SessionTTL        time.Duration
	CookieName        string
}

// AuthdConfig configures the identity and verify authority.
type AuthdConfig struct {
	Server

	DatabaseURL      string
	DBMaxConns       int32
	DBMinConns       int32
	DBConnectTimeout time.Duration
	JWTSecret        string
	IDTokenTTL       time.Duration
	RefreshTokenTTL  time.Duration
	CleanupInterval  time.Duration
}

func loadServer(portKey string, defaultPort string) Server {
	return Server{
		Port:             getEnv(portKey, defaultPort),
		ReadTimeout:      getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:     getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:      getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:   getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:  getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		CORSOrigins:      splitCSV(os.Getenv("CORS_ORIGINS")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
	}
}

func LoadConsole() (*ConsoleConfig, error) {
	_ = godotenv.Load()

	cfg := &ConsoleConfig{
		Server:            loadServer("CONSOLE_PORT", "3000"),
		Production:        strings.EqualFold(getEnv("ENVIRONMENT", "development"), "production"),
		IdentitySignInURL: getEnv("IDENTITY_SIGNIN_URL", "http://localhost:8081/v1/accounts:signInWithPassword"),
		IdentityTokenURL:  getEnv("IDENTITY_TOKEN_URL", "http://localhost:8081/v1/token"),
		IdentityAPIKey:    strings.TrimSpace(os.Getenv("IDENTITY_API_KEY")),
		BackendURL:        getEnv("BACKEND_URL", "http://localhost:8081"),
		CallTimeout:       getDuration("BACKEND_CALL_TIMEOUT", 10*time.Second),
		RefreshInterval:   getDuration("SESSION_REFRESH_INTERVAL", 30*time.Minute),
		SessionTTL:        getDuration("SESSION_TTL", 7*24*time.Hour),
		CookieName:        getEnv("SESSION_COOKIE_NAME", "session"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadAuthd() (*AuthdConfig, error) {
	_ = godotenv.Load()

	cfg := &AuthdConfig{
		Server:           loadServer("AUTHD_PORT", "8081"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:       int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:       int32(getInt("DB_MIN_CONNS", 1)),
		DBConnectTimeout: getDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		JWTSecret:        strings.TrimSpace(os.Getenv("JWT_SECRET")),
		IDTokenTTL:       getDuration("ID_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:  getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		CleanupInterval:  getDuration("TOKEN_CLEANUP_INTERVAL", time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (s Server) validate() error {
	if s.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if s.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch strings.ToLower(s.LogFormat) {
	case "pretty", "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be pretty, json or text")
	}

	return nil
}

func (c *ConsoleConfig) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}

	for key, raw := range map[string]string{
		"IDENTITY_SIGNIN_URL": c.IdentitySignInURL,
		"IDENTITY_TOKEN_URL":  c.IdentityTokenURL,
		"BACKEND_URL":         c.BackendURL,
	} {
		if err := requireAbsoluteURL(key, raw); err != nil {
			return err
		}
	}

	if c.CallTimeout <= 0 {
		return fmt.Errorf("BACKEND_CALL_TIMEOUT must be positive")
	}

	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("SESSION_REFRESH_INTERVAL must be at least 1m")
	}

	if c.SessionTTL <= c.RefreshInterval {
		return fmt.Errorf("SESSION_TTL must exceed SESSION_REFRESH_INTERVAL")
	}

	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME cannot be empty")
	}

	return nil
}

func (c *AuthdConfig) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if c.IDTokenTTL <= 0 || c.RefreshTokenTTL <= c.IDTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must exceed a positive ID_TOKEN_TTL")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS and DB_MAX_CONNS are inconsistent")
	}

	if c.CleanupInterval <= 0 {
		return fmt.Errorf("TOKEN_CLEANUP_INTERVAL must be positive")
	}

	return nil
}

func requireAbsoluteURL(key string, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
