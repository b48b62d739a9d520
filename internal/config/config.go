// Package config loads grader.toml and GRADER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "GRADER"
	FileName  = "grader"
	homeDir   = ".grader"
)

type Server struct {
	Listen     string
	AdminToken string
	SessionTTL time.Duration
}

type Storage struct {
	DataDir      string
	AttemptsPath string
	ToolsPath    string
}

type Admission struct {
	GlobalLimit    int
	DegradedWindow time.Duration
}

type Corrector struct {
	Timeout       time.Duration
	MaxOutputKB   int
	MaxResponseKB int
}

type Reference struct {
	KeyDir       string
	FailureDelay time.Duration
	ReceiptSalt  string
}

type Notifier struct {
	URL     string
	Timeout time.Duration
}

type ObjectStore struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Log struct {
	Level       string
	Development bool
}

type Config struct {
	Server      Server
	Storage     Storage
	Admission   Admission
	GracePeriod time.Duration
	Corrector   Corrector
	MaxUploadKB int
	Reference   Reference
	Notifier    Notifier
	ObjectStore ObjectStore
	Log         Log
	Tracing     string
}

// Load reads path, or grader.toml from ~/.grader when path is empty. A
// missing default file is not an error; a missing explicit one is.
func Load(path string) (*viper.Viper, Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, filepath.Join(home, homeDir))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join(home, homeDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, Config{}, err
	}

	return v, cfg, nil
}

func setDefaults(v *viper.Viper, base string) {
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.session_ttl", "2h")

	v.SetDefault("storage.data_dir", filepath.Join(base, "data"))
	v.SetDefault("storage.attempts_path", filepath.Join(base, "attempts.toml"))
	v.SetDefault("storage.tools_path", filepath.Join(base, "tools.toml"))

	v.SetDefault("admission.global_limit", 0)
	v.SetDefault("admission.degraded_window", "10s")
	v.SetDefault("tools.grace_period", "5s")

	v.SetDefault("corrector.timeout", "60s")
	v.SetDefault("corrector.max_output_kb", 256)
	v.SetDefault("corrector.max_response_kb", 64)
	v.SetDefault("upload.max_kb", 1024)

	v.SetDefault("reference.key_dir", filepath.Join(base, "secrets"))
	v.SetDefault("reference.failure_delay", "1s")
	v.SetDefault("reference.receipt_salt", "grader")

	v.SetDefault("notifier.url", "")
	v.SetDefault("notifier.timeout", "10s")

	v.SetDefault("objectstore.endpoint", "")
	v.SetDefault("objectstore.access_key", "")
	v.SetDefault("objectstore.secret_key", "")
	v.SetDefault("objectstore.bucket", "grader-deliveries")
	v.SetDefault("objectstore.use_ssl", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("tracing.exporter", "none")
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Server: Server{
			Listen:     v.GetString("server.listen"),
			AdminToken: v.GetString("server.admin_token"),
			SessionTTL: v.GetDuration("server.session_ttl"),
		},
		Storage: Storage{
			DataDir:      v.GetString("storage.data_dir"),
			AttemptsPath: v.GetString("storage.attempts_path"),
			ToolsPath:    v.GetString("storage.tools_path"),
		},
		Admission: Admission{
			GlobalLimit:    v.GetInt("admission.global_limit"),
			DegradedWindow: v.GetDuration("admission.degraded_window"),
		},
		GracePeriod: v.GetDuration("tools.grace_period"),
		Corrector: Corrector{
			Timeout:       v.GetDuration("corrector.timeout"),
			MaxOutputKB:   v.GetInt("corrector.max_output_kb"),
			MaxResponseKB: v.GetInt("corrector.max_response_kb"),
		},
		MaxUploadKB: v.GetInt("upload.max_kb"),
		Reference: Reference{
			KeyDir:       v.GetString("reference.key_dir"),
			FailureDelay: v.GetDuration("reference.failure_delay"),
			ReceiptSalt:  v.GetString("reference.receipt_salt"),
		},
		Notifier: Notifier{
			URL:     v.GetString("notifier.url"),
			Timeout: v.GetDuration("notifier.timeout"),
		},
		ObjectStore: ObjectStore{
			Endpoint:  v.GetString("objectstore.endpoint"),
			AccessKey: v.GetString("objectstore.access_key"),
			SecretKey: v.GetString("objectstore.secret_key"),
			Bucket:    v.GetString("objectstore.bucket"),
			UseSSL:    v.GetBool("objectstore.use_ssl"),
		},
		Log: Log{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Tracing: v.GetString("tracing.exporter"),
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = append(errs, errors.New("server.listen is empty"))
	}
	if c.Server.SessionTTL <= 0 {
		errs = append(errs, errors.New("server.session_ttl must be positive"))
	}
	if c.Corrector.Timeout <= 0 {
		errs = append(errs, errors.New("corrector.timeout must be positive"))
	}
	if c.MaxUploadKB <= 0 {
		errs = append(errs, errors.New("upload.max_kb must be positive"))
	}
	if c.GracePeriod < 0 || c.Admission.DegradedWindow < 0 || c.Reference.FailureDelay < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if strings.TrimSpace(c.Reference.ReceiptSalt) == "" {
		errs = append(errs, errors.New("reference.receipt_salt is empty"))
	}
	return errors.Join(errs...)
}
