package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// RosterConfig configures the upstream college roster API.
	RosterConfig struct {
		BaseURL           string
		APIKeySecret      string // name of the secret holding the bearer token
		SecretsDir        string
		PageSize          int
		Timeout           time.Duration
		MaxAttempts       int
		BackoffUnit       time.Duration
		RequestsPerSecond float64
		Burst             int
	}

	Config struct {
		Env              string
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address

		Server   ServerConfig
		Database DatabaseConfig
		Roster   RosterConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Ushauri")
	v.SetDefault("secretKey", "k2d8-j4x)opq$+71=vz&mbc9(t!r)#*w3(#hn4^$fuzx6ly")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "ushauri")
	v.SetDefault("database.user", "ushauri")
	v.SetDefault("database.password", "ushauri")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("roster.baseURL", "https://my.jkkn.ac.in")
	v.SetDefault("roster.apiKeySecret", "MYJKKN_API_KEY")
	v.SetDefault("roster.secretsDir", "")
	v.SetDefault("roster.pageSize", 100)
	v.SetDefault("roster.timeout", 30*time.Second)
	v.SetDefault("roster.maxAttempts", 3)
	v.SetDefault("roster.backoffUnit", time.Second)
	v.SetDefault("roster.requestsPerSecond", 5.0)
	v.SetDefault("roster.burst", 1)
}

// NewConfig loads the app configuration.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD. Values are read from
// the environment, prefixed by ENV (eg. PROD_DATABASE_HOST), after `config/.env.<env>` is loaded.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return fromViper(env, v)
}

func fromViper(env string, v *viper.Viper) *Config {
	appName := v.GetString("appName")
	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          appName,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: appName, Address: v.GetString("defaultFromEmail")},
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Addr:                      v.GetString("server.addr"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Roster: RosterConfig{
			BaseURL:           strings.TrimRight(v.GetString("roster.baseURL"), "/"),
			APIKeySecret:      v.GetString("roster.apiKeySecret"),
			SecretsDir:        v.GetString("roster.secretsDir"),
			PageSize:          v.GetInt("roster.pageSize"),
			Timeout:           v.GetDuration("roster.timeout"),
			MaxAttempts:       v.GetInt("roster.maxAttempts"),
			BackoffUnit:       v.GetDuration("roster.backoffUnit"),
			RequestsPerSecond: v.GetFloat64("roster.requestsPerSecond"),
			Burst:             v.GetInt("roster.burst"),
		},
	}
}

// Validate reports settings the app cannot run with.
func (c *Config) Validate() error {
	if c.Roster.BaseURL == "" {
		return fmt.Errorf("config: roster base URL is required")
	}
	if c.Roster.PageSize < 1 || c.Roster.PageSize > MaxRosterPageSize {
		return fmt.Errorf("config: roster page size must be between 1 and %d (got %d)", MaxRosterPageSize, c.Roster.PageSize)
	}
	if c.Roster.MaxAttempts < 1 {
		return fmt.Errorf("config: roster max attempts must be at least 1 (got %d)", c.Roster.MaxAttempts)
	}
	return nil
}

// MaxRosterPageSize is the largest page the roster API serves.
const MaxRosterPageSize = 1000
