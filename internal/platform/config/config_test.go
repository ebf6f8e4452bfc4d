package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefaults() {
	s.T().Chdir(s.T().TempDir())
	cfg, err := Load("")
	s.Require().NoError(err)
	s.Equal(EnvDevelopment, cfg.Environment)
	s.False(cfg.IsProduction())
	s.Equal(":8080", cfg.Server.Addr)
	s.Equal("memory", cfg.RateLimit.Store)
	s.Equal(10000, cfg.RateLimit.Capacity)
	s.Equal(90*24*time.Hour, cfg.Audit.Retention)
	s.Equal(3, cfg.Mail.MaxAttempts)
}

func (s *ConfigSuite) TestFileAndEnvironment() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "corkboard.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(`
environment: production
session:
  jwt_secret: "a-production-secret-that-is-long-enough"
ratelimit:
  capacity: 500
`), 0o600))

	s.T().Setenv("CORKBOARD_LOGGING_FORMAT", "text")
	s.T().Setenv("CORKBOARD_RATELIMIT_CAPACITY", "250")

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.True(cfg.IsProduction())
	s.Equal("text", cfg.Logging.Format)
	s.Equal(250, cfg.RateLimit.Capacity, "environment overrides file")
}

func (s *ConfigSuite) TestValidate() {
	base := func() *Config {
		s.T().Chdir(s.T().TempDir())
		cfg, err := Load("")
		s.Require().NoError(err)
		return cfg
	}

	s.Run("unknown environment", func() {
		cfg := base()
		cfg.Environment = "staging"
		s.ErrorContains(Validate(cfg), "Environment")
	})

	s.Run("redis store without url", func() {
		cfg := base()
		cfg.RateLimit.Store = "redis"
		s.ErrorContains(Validate(cfg), "redis.url")
	})

	s.Run("production with development secret", func() {
		cfg := base()
		cfg.Environment = EnvProduction
		s.ErrorContains(Validate(cfg), "jwt_secret")
	})

	s.Run("short secret", func() {
		cfg := base()
		cfg.Session.JWTSecret = "short"
		s.ErrorContains(Validate(cfg), "JWTSecret")
	})
}
