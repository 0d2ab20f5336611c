package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "studychat"

// Env holds the STUDYCHAT_* environment. Its values are the defaults of the
// command-line flags.
type Env struct {
	Addr           string   `envconfig:"ADDR" default:"localhost:8000"`
	DSN            string   `envconfig:"DSN" default:"host=localhost user=postgres password=postgres dbname=studychat sslmode=disable"`
	Store          string   `envconfig:"STORE" default:"postgres"`
	BadgerPath     string   `envconfig:"BADGER_PATH"`
	SigningKey     string   `envconfig:"SIGNING_KEY"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

// LoadEnv reads envFile, if it exists, into the process environment and then
// processes the STUDYCHAT_ variables. Variables already set win over the file.
func LoadEnv(envFile string) (Env, error) {
	var env Env
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return env, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := envconfig.Process(envPrefix, &env); err != nil {
		return env, fmt.Errorf("process env: %w", err)
	}
	return env, nil
}

type Config struct {
	ServerAddr     string
	Store          string
	DatabaseDSN    string
	BadgerPath     string
	SigningKey     []byte
	AllowedOrigins []string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, errors.New("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, store, databaseDSN, badgerPath, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	switch store {
	case "postgres":
		if databaseDSN == "" {
			return nil, fmt.Errorf("database DSN cannot be empty")
		}
	case "badger":
	default:
		return nil, fmt.Errorf("unknown store %q, want postgres or badger", store)
	}

	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		Store:          store,
		DatabaseDSN:    databaseDSN,
		BadgerPath:     badgerPath,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
	}, nil
}
