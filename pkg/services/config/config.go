package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/copro-tools/coproledger/pkg/services/extract"
)

// App is the process configuration, read once at startup and passed into the
// core as explicit values.
type App struct {
	DbPath      string `mapstructure:"db_path"`
	BackupDir   string `mapstructure:"backup_dir"`
	ListenAddr  string `mapstructure:"listen_addr"`
	Headless    bool   `mapstructure:"headless"`
	ShowConsole bool   `mapstructure:"show_console"`
}

// Load reads the optional config file and the COPROLEDGER_* environment,
// applying defaults for anything unset.
func Load(path string) (*App, error) {
	v := viper.New()
	v.SetDefault("db_path", "coproledger.db")
	v.SetDefault("backup_dir", "backup")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("headless", true)
	v.SetDefault("show_console", false)

	v.SetEnvPrefix("COPROLEDGER")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &app, nil
}

// LoadCredentials reads the portal credential triple, from .env when present
// and the process environment otherwise.
func LoadCredentials() (extract.Credentials, error) {
	// best effort; the variables may already be exported
	_ = godotenv.Load()

	creds := extract.Credentials{
		Login:    os.Getenv("EXTRANET_LOGIN"),
		Password: os.Getenv("EXTRANET_PASSWORD"),
		URL:      os.Getenv("EXTRANET_URL"),
	}
	if creds.Login == "" || creds.Password == "" || creds.URL == "" {
		return extract.Credentials{}, fmt.Errorf(
			"missing credentials: EXTRANET_LOGIN, EXTRANET_PASSWORD and EXTRANET_URL must be set")
	}
	return creds, nil
}
