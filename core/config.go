package core

import (
	"fmt"
	"log"
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
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		// JWTPendingChangeDelta is the TTL of the restricted token issued when a
		// login succeeds with a temporary credential that must still be changed.
		// Always shorter than JWTExpirationDelta.
		JWTPendingChangeDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
	}

	RedisConfig struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
		// login rate limit: LoginRateLimit attempts per LoginRateWindow per client IP
		LoginRateLimit  int
		LoginRateWindow time.Duration
	}

	Config struct {
		Env       string
		Debug     bool
		TestMode  bool
		Build     string
		AppName   string
		SecretKey string

		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		// TempCredentialValidity is how long a guardian's temporary credential
		// remains usable after issuance.
		TempCredentialValidity time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// NewConfig loads the application configuration from the environment,
// optionally seeded by a config/.env.<env> file.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Escolar")
	v.SetDefault("secretKey", "x2m$7l)wq0e&5n^8dz+uoh!r(4c#yg1h*$pjbt3ska9vf6iu")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("tempCredentialValidity", 3*24*time.Hour)

	v.SetDefault("serverHost", "0.0.0.0")
	v.SetDefault("serverPort", 8000)
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 24*time.Hour)
	v.SetDefault("jwtPendingChangeDelta", 15*time.Minute)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "escolar")
	v.SetDefault("databaseUser", "escolar")
	v.SetDefault("databasePassword", "escolar")
	v.SetDefault("databaseAdminUser", "")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", 5432)
	v.SetDefault("databaseDisableTLS", true)

	v.SetDefault("redisEnabled", false)
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("loginRateLimit", 10)
	v.SetDefault("loginRateWindow", time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:       env,
		Debug:     v.GetBool("debug"),
		TestMode:  env == "TEST",
		Build:     v.GetString("build"),
		AppName:   v.GetString("appName"),
		SecretKey: v.GetString("secretKey"),

		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),

		TempCredentialValidity: v.GetDuration("tempCredentialValidity"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Port:                      v.GetInt("serverPort"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			JWTPendingChangeDelta:     v.GetDuration("jwtPendingChangeDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetInt("databasePort"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Redis: RedisConfig{
			Enabled:         v.GetBool("redisEnabled"),
			Addr:            v.GetString("redisAddr"),
			Password:        v.GetString("redisPassword"),
			DB:              v.GetInt("redisDB"),
			LoginRateLimit:  v.GetInt("loginRateLimit"),
			LoginRateWindow: v.GetDuration("loginRateWindow"),
		},
	}
	return conf
}
