package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	databaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	redisConfig struct {
		Addr     string // empty: in-process rate limiting
		Password string
		DB       int
	}

	rateLimitConfig struct {
		Submissions int
		Window      time.Duration
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string // HS256 secret shared with the auth provider
		JWTAudience      string
		WorkDir          string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string
		Server           serverConfig
		Database         databaseConfig
		Redis            redisConfig
		RateLimit        rateLimitConfig
	}
)

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the ENV name: DEV_DATABASE_HOST, PROD_SECRET_KEY...
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("app_name", "Takharruj")
	v.SetDefault("secret_key", "k2q7-mzr)u8n$+4b=wa&e0xp1(j!t)#*d9(#zc4h^$qf3v@l")
	v.SetDefault("jwt_audience", "authenticated")
	v.SetDefault("frontend_base_url", "http://localhost:5173")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("default_from_email", "Takharruj <noreply@localhost>")

	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debug_host", "0.0.0.0:4000")
	v.SetDefault("server_read_timeout", 5*time.Second)
	v.SetDefault("server_write_timeout", 5*time.Second)
	v.SetDefault("server_shutdown_timeout", 5*time.Second)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", 5432)
	v.SetDefault("database_name", "takharruj")
	v.SetDefault("database_user", "takharruj")
	v.SetDefault("database_password", "takharruj")
	v.SetDefault("database_admin_user", "postgres")
	v.SetDefault("database_admin_password", "postgres")
	v.SetDefault("database_disable_tls", true)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("rate_limit_submissions", 10)
	v.SetDefault("rate_limit_window", time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("test_mode"),
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("app_name"),
		SecretKey:        v.GetString("secret_key"),
		JWTAudience:      v.GetString("jwt_audience"),
		WorkDir:          wd,
		FrontendBaseURL:  v.GetString("frontend_base_url"),
		RollbarToken:     v.GetString("rollbar_token"),
		SendgridApiKey:   v.GetString("sendgrid_api_key"),
		defaultFromEmail: v.GetString("default_from_email"),
		Server: serverConfig{
			Host:            v.GetString("server_host"),
			DebugHost:       v.GetString("server_debug_host"),
			ReadTimeout:     v.GetDuration("server_read_timeout"),
			WriteTimeout:    v.GetDuration("server_write_timeout"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
		},
		Database: databaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetInt("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_admin_user"),
			AdminPassword: v.GetString("database_admin_password"),
			DisableTLS:    v.GetBool("database_disable_tls"),
		},
		Redis: redisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		RateLimit: rateLimitConfig{
			Submissions: v.GetInt("rate_limit_submissions"),
			Window:      v.GetDuration("rate_limit_window"),
		},
	}
}

// NewTestConfig returns a config suitable for unit tests; nothing is read from the environment.
func NewTestConfig() *Config {
	return &Config{
		Debug:            false,
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "Takharruj",
		SecretKey:        "test-secret",
		JWTAudience:      "authenticated",
		FrontendBaseURL:  "http://localhost:5173",
		defaultFromEmail: "Takharruj <noreply@test.local>",
		Server:           serverConfig{ShutdownTimeout: time.Second},
		RateLimit:        rateLimitConfig{Submissions: 1000, Window: time.Minute},
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func (db databaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}
