package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"opsboard/internal/logger"
)

const keyVar = "OPSBOARD_KEY"

type Config struct {
	Port            int           `yaml:"port"`
	SessionKey      string        `yaml:"-"`
	DBDriver        string        `yaml:"db_driver"`
	DBDSN           string        `yaml:"db_dsn"`
	StoreTimeout    time.Duration `yaml:"store_timeout"`
	LogDir          string        `yaml:"log_dir"`
	LogFile         string        `yaml:"log_file"`
	SessionMaxAge   time.Duration `yaml:"session_max_age"`
	SecureCookies   bool          `yaml:"secure_cookies"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	BcryptCost      int           `yaml:"bcrypt_cost"`
	LoginRatePerMin float64       `yaml:"login_rate_per_min"`
	LoginBurst      int           `yaml:"login_burst"`
	APIRatePerMin   float64       `yaml:"api_rate_per_min"`
	APIBurst        int           `yaml:"api_burst"`
}

func defaults() *Config {
	return &Config{
		Port:            8080,
		DBDriver:        "sqlite",
		DBDSN:           "opsboard.db",
		StoreTimeout:    5 * time.Second,
		LogDir:          "logs",
		LogFile:         "opsboard.log",
		SessionMaxAge:   7 * 24 * time.Hour,
		LoginRatePerMin: 5,
		LoginBurst:      3,
		APIRatePerMin:   120,
		APIBurst:        20,
	}
}

// Load reads .env from the working directory. See LoadFile.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile builds the configuration from defaults, then the YAML file named
// by OPSBOARD_CONFIG, then environment variables (including envFile).
// A missing or short OPSBOARD_KEY is replaced and persisted to envFile.
func LoadFile(envFile string) (*Config, error) {
	// Try loading .env file, but don't fail if it doesn't exist
	_ = godotenv.Load(envFile)

	cfg := defaults()
	if path := os.Getenv("OPSBOARD_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	key := os.Getenv(keyVar)
	if len(key) < 32 {
		logger.Info.Printf("%s not found or too short. Generating a new secure key...", keyVar)
		newKey, err := generateRandomKey(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}

		if err := saveKeyToEnv(envFile, newKey); err != nil {
			logger.Error.Printf("Failed to save generated key to %s: %v", envFile, err)
		} else {
			logger.Info.Printf("New %s saved to %s", keyVar, envFile)
		}
		key = newKey
	}
	cfg.SessionKey = key

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, v, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, v, err))
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, v, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, v, err))
				return
			}
			*dst = b
		}
	}

	integer("PORT", &cfg.Port)
	str("DB_DRIVER", &cfg.DBDriver)
	str("DB_DSN", &cfg.DBDSN)
	duration("STORE_TIMEOUT", &cfg.StoreTimeout)
	str("LOG_DIR", &cfg.LogDir)
	str("LOG_FILE", &cfg.LogFile)
	duration("SESSION_MAX_AGE", &cfg.SessionMaxAge)
	boolean("SECURE_COOKIES", &cfg.SecureCookies)
	boolean("TRUST_PROXY", &cfg.TrustProxy)
	integer("BCRYPT_COST", &cfg.BcryptCost)
	float("LOGIN_RATE_PER_MIN", &cfg.LoginRatePerMin)
	integer("LOGIN_BURST", &cfg.LoginBurst)
	float("API_RATE_PER_MIN", &cfg.APIRatePerMin)
	integer("API_BURST", &cfg.APIBurst)

	return errors.Join(errs...)
}

func (c *Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	case c.StoreTimeout <= 0:
		return errors.New("STORE_TIMEOUT must be positive")
	case c.SessionMaxAge <= 0:
		return errors.New("SESSION_MAX_AGE must be positive")
	case c.LoginRatePerMin <= 0 || c.APIRatePerMin <= 0:
		return errors.New("rate limits must be positive")
	case c.LoginBurst <= 0 || c.APIBurst <= 0:
		return errors.New("rate limit bursts must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func generateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	// Return base64 encoded string to ensure it's printable and handles bytes correctly
	return base64.StdEncoding.EncodeToString(b), nil
}

// saveKeyToEnv sets OPSBOARD_KEY in filename, keeping the other entries.
func saveKeyToEnv(filename, key string) error {
	content, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return godotenv.Write(map[string]string{keyVar: key, "PORT": "8080"}, filename)
	} else if err != nil {
		return err
	}

	env, err := godotenv.Unmarshal(decodeEnvFile(content))
	if err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	env[keyVar] = key
	return godotenv.Write(env, filename)
}

// decodeEnvFile converts UTF-16LE files (as written by some Windows editors)
// to UTF-8 and strips stray NUL bytes.
func decodeEnvFile(content []byte) string {
	hasBOM := len(content) >= 2 && content[0] == 0xff && content[1] == 0xfe

	// More than 30% NUL bytes without a BOM is most likely UTF-16LE
	nullCount := 0
	if !hasBOM && len(content) > 10 {
		for _, b := range content {
			if b == 0 {
				nullCount++
			}
		}
	}
	isImplicitUTF16 := !hasBOM && len(content) > 0 && (float64(nullCount)/float64(len(content)) > 0.3)

	if !hasBOM && !isImplicitUTF16 {
		return strings.ReplaceAll(string(content), "\x00", "")
	}

	data := content
	if hasBOM {
		data = content[2:]
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}

	u16s := make([]uint16, len(data)/2)
	for i := range u16s {
		u16s[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return strings.ReplaceAll(string(utf16.Decode(u16s)), "\x00", "")
}
