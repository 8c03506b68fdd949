package config

/*
Описание конфигурационного файла: configs/config.example.yaml.
Значения из окружения (и файла .env) имеют приоритет над файлом.
*/

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"

	developmentSecret = "development-secret"
)

var ErrMissingSecret = errors.New("не задан секрет для проверки токенов (auth.secret или JWT_SECRET)")

type Auth struct {
	Secret        string   `yaml:"secret"`
	ReporterRoles []string `yaml:"reporter_roles"`
}

type Settings struct {
	Host            string                       `yaml:"host"`
	Port            string                       `yaml:"port"`
	Environment     string                       `yaml:"environment"`
	ConnTTL         int                          `yaml:"conn_ttl"`
	SendBuffer      int                          `yaml:"send_buffer"`
	LogLevel        string                       `yaml:"log_level"`
	LogFilePath     string                       `yaml:"log_file_path"`
	LogMaxAgeDays   int                          `yaml:"log_max_age_days"`
	FrontendURL     string                       `yaml:"frontend_url"`
	Auth            Auth                         `yaml:"auth"`
	Directory       map[string]map[string]string `yaml:"directory"`
	Export          map[string]map[string]string `yaml:"export"`
	ExportBuffer    int                          `yaml:"export_buffer"`
	ExportWorkers   int                          `yaml:"export_workers"`
	FlushTimeout    int                          `yaml:"flush_timeout"`
	ResolveTimeout  int                          `yaml:"resolve_timeout"`
	StaleAfter      int                          `yaml:"stale_after"`
	StaleReportCron string                       `yaml:"stale_report_cron"`
	MigrationsPath  string                       `yaml:"migrations_path"`

	// StationaryMeters смещение между проверками, ниже которого транспорт считается стоящим, 0 отключает
	StationaryMeters float64 `yaml:"stationary_meters"`
}

func (s *Settings) GetConnTTL() time.Duration {
	return time.Duration(s.ConnTTL) * time.Second
}

func (s *Settings) GetFlushTimeout() time.Duration {
	return time.Duration(s.FlushTimeout) * time.Second
}

func (s *Settings) GetResolveTimeout() time.Duration {
	return time.Duration(s.ResolveTimeout) * time.Second
}

func (s *Settings) GetStaleAfter() time.Duration {
	return time.Duration(s.StaleAfter) * time.Second
}

func (s *Settings) GetListenAddress() string {
	return s.Host + ":" + s.Port
}

func (s *Settings) IsDevelopment() bool {
	return s.Environment == EnvironmentDevelopment
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch strings.ToUpper(s.LogLevel) {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

// LoadDotEnv загружает переменные из файла .env, если он есть; уже заданные переменные не перезаписываются
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	if err = yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}

	c.applyEnv(os.Getenv)
	c.applyDefaults()

	if err = c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (s *Settings) applyEnv(getenv func(string) string) {
	override := func(target *string, name string) {
		if value := getenv(name); value != "" {
			*target = value
		}
	}

	override(&s.Host, "HOST")
	override(&s.Port, "PORT")
	override(&s.Environment, "APP_ENV")
	override(&s.LogLevel, "LOG_LEVEL")
	override(&s.FrontendURL, "FRONTEND_URL")
	override(&s.Auth.Secret, "JWT_SECRET")

	if uri := getenv("MONGO_URI"); uri != "" {
		if s.Directory == nil {
			s.Directory = map[string]map[string]string{}
		}
		if len(s.Directory) == 0 {
			s.Directory["mongodb"] = map[string]string{}
		}
		if params, ok := s.Directory["mongodb"]; ok {
			if params == nil {
				params = map[string]string{}
				s.Directory["mongodb"] = params
			}
			params["uri"] = uri
		}
	}
}

func (s *Settings) applyDefaults() {
	if s.Port == "" {
		s.Port = "5000"
	}
	if s.Environment == "" {
		s.Environment = EnvironmentDevelopment
	}
	if s.ConnTTL == 0 {
		s.ConnTTL = 60
	}
	if s.SendBuffer == 0 {
		s.SendBuffer = 64
	}
	if s.LogMaxAgeDays == 0 {
		s.LogMaxAgeDays = 30
	}
	if s.Auth.ReporterRoles == nil {
		s.Auth.ReporterRoles = []string{"driver", "admin"}
	}
	if len(s.Directory) == 0 {
		s.Directory = map[string]map[string]string{"mongodb": {}}
	}
	if s.ExportBuffer == 0 {
		s.ExportBuffer = 1024
	}
	if s.FlushTimeout == 0 {
		s.FlushTimeout = 10
	}
	if s.ResolveTimeout == 0 {
		s.ResolveTimeout = 5
	}
	if s.StaleAfter == 0 {
		s.StaleAfter = 300
	}
	if s.MigrationsPath == "" {
		s.MigrationsPath = "migrations/postgres"
	}
}

func (s *Settings) validate() error {
	if s.Auth.Secret == "" {
		if !s.IsDevelopment() {
			return ErrMissingSecret
		}
		log.Warn("Секрет токенов не задан, используется секрет для разработки")
		s.Auth.Secret = developmentSecret
	}
	if len(s.Directory) != 1 {
		return fmt.Errorf("справочник должен быть задан ровно одним разделом, задано %d", len(s.Directory))
	}
	if s.ConnTTL < 0 {
		return fmt.Errorf("некорректный conn_ttl: %d", s.ConnTTL)
	}
	if s.StationaryMeters < 0 {
		return fmt.Errorf("некорректный stationary_meters: %f", s.StationaryMeters)
	}
	return nil
}
