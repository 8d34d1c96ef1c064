package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "GOSOCIAL"

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	UploadDir      string
}

// Env holds flag defaults read from the environment. Variables are
// prefixed with GOSOCIAL_, e.g. GOSOCIAL_DSN.
type Env struct {
	Addr           string `envconfig:"ADDR" default:"localhost:8000"`
	DSN            string `envconfig:"DSN" default:"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"`
	SigningKey     string `envconfig:"SIGNING_KEY"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads"`
	Migrate        bool   `envconfig:"MIGRATE" default:"true"`
}

// LoadEnv reads an optional .env file from the working directory and
// then processes the GOSOCIAL_ environment into an Env.
func LoadEnv(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("load env file: %w", err)
	}

	var env Env
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("process env: %w", err)
	}

	return env, nil
}

// SplitOrigins turns a comma-separated origin list into a slice, dropping
// empty entries.
func SplitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("empty signing secret")
	}
	return key, nil
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, uploadDir string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if uploadDir == "" {
		return nil, fmt.Errorf("upload directory cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		UploadDir:      uploadDir,
	}, nil
}
