package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "USERACCOUNTS_"

// envFile is the dotenv file loaded before the environment is read.
var envFile = ".env"

// parseEnv overlays USERACCOUNTS_* variables onto config. A .env file in the
// working directory is loaded first; variables already set in the process
// environment win over it. Malformed values panic, as other config sources do.
func parseEnv(config *Config) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	lookupString(&config.HTTPAddr, "HTTP_ADDR")
	lookupString(&config.DatabaseDSN, "DATABASE_DSN")
	lookupString(&config.SecretKey, "SECRET_KEY")
	lookupDuration(&config.SessionValidityDuration, "SESSION_VALIDITY")
	lookupDuration(&config.ResetTokenValidityDuration, "RESET_TOKEN_VALIDITY")
	lookupString(&config.BaseURL, "BASE_URL")
	lookupInt(&config.BcryptCost, "BCRYPT_COST")
	lookupString(&config.RedisAddr, "REDIS_ADDR")
	lookupString(&config.LogLevel, "LOG_LEVEL")
}

func lookupString(dst *string, name string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

func lookupDuration(dst *time.Duration, name string) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func lookupInt(dst *int, name string) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}
