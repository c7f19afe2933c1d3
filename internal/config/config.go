package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server     Server     `json:"server"`
	Database   Database   `json:"database"`
	Storage    Storage    `json:"storage"`
	Generation Generation `json:"generation"`
	Logging    Logging    `json:"logging"`
}

// Server represents HTTP server configuration
type Server struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Database represents Postgres configuration
type Database struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// Storage selects where blobs live: an S3 bucket, or a local directory when
// Bucket is empty (development mode).
type Storage struct {
	Bucket    string `json:"bucket"`
	LocalRoot string `json:"local_root"`
}

// Generation tunes the job queue and batch work directory.
type Generation struct {
	WorkDir       string        `json:"work_dir"`
	Workers       int           `json:"workers"`
	QueueSize     int           `json:"queue_size"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryBackoff  time.Duration `json:"retry_backoff"`
	BatchMaxAge   time.Duration `json:"batch_max_age"`
}

// Logging configuration
type Logging struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{
		Server: Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: Database{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "certmint_portal",
			SSLMode: "disable",
		},
		Storage: Storage{
			LocalRoot: "data/blobs",
		},
		Generation: Generation{
			WorkDir:       "data/batches",
			Workers:       2,
			QueueSize:     64,
			RetryAttempts: 3,
			RetryBackoff:  5 * time.Second,
			BatchMaxAge:   24 * time.Hour,
		},
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}
	if workDir := os.Getenv("GENERATION_WORK_DIR"); workDir != "" {
		config.Generation.WorkDir = workDir
	}
}

// GetDatabaseURL returns the database connection string
func (c *Database) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *Server) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
