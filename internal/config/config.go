package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	APIPort   int    `yaml:"apiPort"`
	ClientURL string `yaml:"clientUrl"`
	Database  struct {
		Type            string `yaml:"type"` // "mysql" or "sqlite"
		Host            string `yaml:"host"`
		Port            string `yaml:"port"`
		Name            string `yaml:"name"`
		User            string `yaml:"user"`
		Password        string `yaml:"password"`
		Path            string `yaml:"path"` // sqlite only
		MaxConns        int    `yaml:"maxConns"`
		MaxIdle         int    `yaml:"maxIdle"`
		ConnMaxLifetime string `yaml:"connMaxLifetime"`
		KeepaliveSecs   int    `yaml:"keepaliveSecs"`
	} `yaml:"database"`
	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`
	Razorpay struct {
		KeyID     string `yaml:"keyId"`
		KeySecret string `yaml:"keySecret"`
	} `yaml:"razorpay"`
	Email struct {
		ResendAPIKey string `yaml:"resendApiKey"`
		From         string `yaml:"from"`
	} `yaml:"email"`
	Storage struct {
		Enabled         bool   `yaml:"enabled"`
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		AccessKeyID     string `yaml:"accessKeyId"`
		SecretAccessKey string `yaml:"secretAccessKey"`
	} `yaml:"storage"`
	Metrics struct {
		User string `yaml:"user"`
		Pass string `yaml:"pass"`
	} `yaml:"metrics"`
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Printf("Warning: Could not read config file: %s. Using defaults or environment variables.", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = 5000
		log.Println("APIPort not specified, using default 5000")
	}

	if cfg.ClientURL == "" {
		cfg.ClientURL = "http://localhost:5173"
		log.Println("ClientURL not specified, using default http://localhost:5173")
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "mysql"
		log.Println("Database type not specified, using default mysql")
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "/data/streamtheme.db"
	}

	// MySQL can take ~100MB per untuned connection on a small instance;
	// 5 is a safe pool cap.
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 5
	}
	if cfg.Database.MaxIdle == 0 {
		cfg.Database.MaxIdle = 2
	}
	if cfg.Database.KeepaliveSecs == 0 {
		cfg.Database.KeepaliveSecs = 60
	}

	return &cfg, nil
}
