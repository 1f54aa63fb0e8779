package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	baseURLVar     = "BASE_URL"
	logLevelVar    = "LOG_LEVEL"
	databasePath   = "DATABASE_PATH"
	adminUserVar   = "ADMIN_USERNAME"
	adminPassVar   = "ADMIN_PASSWORD"
	environmentVar = "ENV"
)

type EnvVars struct {
	port string
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.port
	if port == "" {
		port = GetEnv(portEnvVar, "8080")
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Blog Server")
}

func (EnvVars) GetEnv() string {
	return GetEnv(environmentVar, "DEV")
}

// GetBaseURL returns the public base URL of the API (e.g., "https://api.example.com").
// OAuth2 provider redirect URIs are built from it.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetDatabasePath() string {
	return GetEnv(databasePath, "./data/blog.db")
}

func (EnvVars) GetAdminUsername() string {
	return GetEnv(adminUserVar, "")
}

func (EnvVars) GetAdminPassword() string {
	return GetEnv(adminPassVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses values such as "15m" or "168h". Unparseable values fall back to the default.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func GetEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
