package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the application configuration. It is set once by NewConfig on start up.
var Conf *Config

type (
	Config struct {
		AppName         string
		Env             string // DEV (local; default), TEST, QA, PROD
		Debug           bool
		TestMode        bool
		Build           string
		WorkDir         string
		FrontendBaseURL string

		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Cooldown CooldownConfig

		SweepInterval         time.Duration
		EmailDispatchInterval time.Duration
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr       string // empty disables the program cache
		Password   string
		DB         int
		ProgramTTL time.Duration
	}

	// CooldownConfig holds every time offset driving progress transitions.
	// The numbers changed more than once over the life of the program, so they
	// are configuration rather than constants.
	CooldownConfig struct {
		AssessmentDue   time.Duration // due-date safety net set after an assessment
		TrainingDue     time.Duration // due-date while the second training is pending
		TrainingTimeout time.Duration // unlock timer while the second training is pending
		SessionDue      time.Duration // due-date of the between-sessions break
		SessionTimeout  time.Duration // unlock timer of the between-sessions break
		AssessmentEvery int           // a session requires an assessment every N sessions
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the configuration from the environment (and an optional
// config/.env.<env> file) and sets the Conf global.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("appName", "Auris")
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("defaultFromName", "Auris")
	v.SetDefault("serverHost", "0.0.0.0:8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "auris")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTLS", true)
	v.SetDefault("redisAddr", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("redisProgramTTL", time.Hour)
	v.SetDefault("cooldownAssessmentDue", 24*time.Hour)
	v.SetDefault("cooldownTrainingDue", 72*time.Hour)
	v.SetDefault("cooldownTrainingTimeout", 23*time.Hour)
	v.SetDefault("cooldownSessionDue", 216*time.Hour)
	v.SetDefault("cooldownSessionTimeout", 167*time.Hour)
	v.SetDefault("cooldownAssessmentEvery", 3)
	v.SetDefault("sweepInterval", time.Hour)
	v.SetDefault("emailDispatchInterval", time.Hour)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	wd := findWorkDir()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	Conf = &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        env == "TEST",
		Build:           v.GetString("build"),
		WorkDir:         wd,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Redis: RedisConfig{
			Addr:       v.GetString("redisAddr"),
			Password:   v.GetString("redisPassword"),
			DB:         v.GetInt("redisDB"),
			ProgramTTL: v.GetDuration("redisProgramTTL"),
		},
		Cooldown: CooldownConfig{
			AssessmentDue:   v.GetDuration("cooldownAssessmentDue"),
			TrainingDue:     v.GetDuration("cooldownTrainingDue"),
			TrainingTimeout: v.GetDuration("cooldownTrainingTimeout"),
			SessionDue:      v.GetDuration("cooldownSessionDue"),
			SessionTimeout:  v.GetDuration("cooldownSessionTimeout"),
			AssessmentEvery: v.GetInt("cooldownAssessmentEvery"),
		},
		SweepInterval:         v.GetDuration("sweepInterval"),
		EmailDispatchInterval: v.GetDuration("emailDispatchInterval"),
	}
	return Conf
}

// findWorkDir walks up from the current directory until it finds the module root.
// go-test changes the working directory to the test package being run; templates
// and .env files are resolved relative to the root.
func findWorkDir() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err = os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
