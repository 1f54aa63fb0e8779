package config

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	SecurityConfig
	RedisConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetDatabasePath() string
	GetAdminUsername() string
	GetAdminPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Security
	Redis
	OAuth
}

// Option overrides a value that would otherwise come from the environment.
type Option func(*mainConfig)

// WithPort overrides the PORT environment variable.
func WithPort(port string) Option {
	return func(c *mainConfig) {
		c.EnvVars.port = port
	}
}

// WithProvidersFile overrides the OAUTH_PROVIDERS_FILE environment variable.
func WithProvidersFile(path string) Option {
	return func(c *mainConfig) {
		c.OAuth.providersFile = path
	}
}

func New(options ...Option) Config {
	c := mainConfig{}
	for _, opt := range options {
		opt(&c)
	}
	return c
}
