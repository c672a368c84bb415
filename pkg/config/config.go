package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"

	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

type Config struct {
	ServerPort  string
	Environment string

	StoreBackend  string
	MongoURI      string
	MongoDatabase string

	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string

	AuthProvider string
	JWTSecret    string

	PushEnabled bool
	PushTimeout time.Duration

	MessageRatePerMinute int
	MessageRateBurst     int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreBackend:  getEnv("STORE_BACKEND", StoreMemory),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "repairhub"),

		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),

		AuthProvider: getEnv("AUTH_PROVIDER", AuthJWT),
		JWTSecret:    getEnv("JWT_SECRET", ""),

		PushEnabled: getEnvAsBool("PUSH_ENABLED", false),
		PushTimeout: time.Duration(getEnvAsInt64("PUSH_TIMEOUT_SECONDS", 5)) * time.Second,

		MessageRatePerMinute: int(getEnvAsInt64("MESSAGE_RATE_PER_MINUTE", 30)),
		MessageRateBurst:     int(getEnvAsInt64("MESSAGE_RATE_BURST", 10)),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects combinations the process cannot start with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI must be set when STORE_BACKEND=%s", StoreMongo)
		}
	case StoreFirestore:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID must be set when STORE_BACKEND=%s", StoreFirestore)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthProvider {
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET must be set when AUTH_PROVIDER=%s", AuthJWT)
		}
	case AuthFirebase:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID must be set when AUTH_PROVIDER=%s", AuthFirebase)
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.PushEnabled && c.FirebaseProject == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID must be set when PUSH_ENABLED=true")
	}
	if c.MessageRatePerMinute <= 0 || c.MessageRateBurst <= 0 {
		return fmt.Errorf("MESSAGE_RATE_PER_MINUTE and MESSAGE_RATE_BURST must be positive")
	}

	return nil
}

// NeedsFirebase reports whether any component requires a Firebase app.
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == StoreFirestore || c.AuthProvider == AuthFirebase || c.PushEnabled
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}
