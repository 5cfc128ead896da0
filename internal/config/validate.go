package config

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var errors []string

	if err := c.validatePaths(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateAdmin(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.Audit.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("audit database: %s", err.Error()))
	}

	if err := c.validateSnapshot(); err != nil {
		errors = append(errors, err.Error())
	}

	// JWT is optional - only validated if a secret key is configured
	if err := c.validateJWT(); err != nil {
		errors = append(errors, err.Error())
	}

	// Session is optional - only validated if a secret key is configured
	if err := c.validateSession(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s",
			strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DatadirPath == "" {
		return fmt.Errorf("CLUSTERMON_DATADIR is required")
	}
	if c.Paths.PersistdirPath == "" {
		return fmt.Errorf("CLUSTERMON_PERSISTDIR is required")
	}
	return nil
}

func (c *Config) validateAdmin() error {
	if c.Admin.BindAddress == "" {
		return fmt.Errorf("ADMIN_BIND_ADDRESS is required")
	}
	if c.Admin.RateLimit < 0 {
		return fmt.Errorf("ADMIN_RATE_LIMIT must not be negative, got: %d", c.Admin.RateLimit)
	}
	validEnvs := map[string]bool{"development": true, "production": true, "test": true}
	if !validEnvs[c.Admin.Environment] {
		return fmt.Errorf("ENVIRONMENT must be 'development', 'production', or 'test', got: %s",
			c.Admin.Environment)
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	if c.Snapshot.DB < 0 || c.Snapshot.DB > 15 {
		return fmt.Errorf("SNAPSHOT_REDIS_DB must be between 0 and 15, got: %d", c.Snapshot.DB)
	}
	if c.Snapshot.Address == "" {
		return fmt.Errorf("SNAPSHOT_REDIS_ADDRESS is required")
	}
	if c.Snapshot.TTL <= 0 {
		return fmt.Errorf("SNAPSHOT_TTL must be positive, got: %v", c.Snapshot.TTL)
	}
	return nil
}

func (c *Config) validateJWT() error {
	if c.JWT.SecretKey == "" {
		return nil
	}

	if err := validateSecretStrength("JWT_SECRET_KEY", c.JWT.SecretKey); err != nil {
		return err
	}

	if c.JWT.AccessTokenDuration <= 0 {
		return fmt.Errorf("JWT_ACCESS_TOKEN_DURATION must be positive, got: %v", c.JWT.AccessTokenDuration)
	}

	return nil
}

// validateSecretStrength ensures a configured secret meets minimal security
// requirements: enough length, no obviously weak pattern, enough entropy.
func validateSecretStrength(envVar, secret string) error {
	const minSecretLength = 32 // 256 bits minimum

	if len(secret) < minSecretLength {
		return fmt.Errorf("%s must be at least %d characters for security (got %d)",
			envVar, minSecretLength, len(secret))
	}

	weakPatterns := []struct {
		pattern string
		message string
	}{
		{`^(?i)(secret|password|test|demo|admin|12345|changeme|your-secret)`, "uses a common weak word"},
		{`^(.)\1+$`, "uses repeated characters"},
		{`^[0-9]+$`, "uses only numbers"},
		{`^[a-zA-Z]+$`, "uses only letters"},
	}

	for _, wp := range weakPatterns {
		matched, _ := regexp.MatchString(wp.pattern, secret)
		if matched {
			return fmt.Errorf("%s %s; use a cryptographically secure random value (e.g., openssl rand -base64 32)", envVar, wp.message)
		}
	}

	entropy := calculateEntropy(secret)
	minExpectedEntropy := 4.5 // bits per character

	if entropy < minExpectedEntropy {
		return fmt.Errorf("%s has low entropy (%.2f bits/char); expected >= %.2f bits/char. Generate with: openssl rand -base64 32",
			envVar, entropy, minExpectedEntropy)
	}

	return nil
}

// calculateEntropy computes Shannon entropy in bits per character
func calculateEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}

	var entropy float64
	length := float64(len(s))

	for _, count := range freq {
		p := float64(count) / length
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}

	return entropy
}

func (c *Config) validateSession() error {
	if c.Session.SecretKey == "" {
		return nil
	}

	if err := validateSecretStrength("SESSION_SECRET_KEY", c.Session.SecretKey); err != nil {
		return err
	}

	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got: %v", c.Session.MaxAge)
	}

	validSameSite := map[string]bool{"Strict": true, "Lax": true, "None": true}
	if !validSameSite[c.Session.SameSite] {
		return fmt.Errorf("SESSION_SAME_SITE must be 'Strict', 'Lax', or 'None', got: %s",
			c.Session.SameSite)
	}

	if c.Session.SameSite == "None" && !c.Session.Secure {
		return fmt.Errorf("SESSION_SECURE must be true when SESSION_SAME_SITE is 'None'")
	}

	return nil
}
