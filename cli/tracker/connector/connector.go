package connector

import (
	"database/sql"
	"fmt"
	"net/url"
	"regexp"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Connector подключение к реляционной базе
type Connector interface {
	GetConnection() *sql.DB
	Connect(map[string]string) error
	Close() error
}

type Settings struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN строка подключения в формате ключ=значение
func (s Settings) DSN() string {
	return fmt.Sprintf("dbname=%s host=%s port=%s user=%s password=%s sslmode=%s",
		s.Database, s.Host, s.Port, s.User, s.Password, s.SSLMode)
}

// URL строка подключения для миграций
func (s Settings) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Password),
		Host:     s.Host + ":" + s.Port,
		Path:     "/" + s.Database,
		RawQuery: "sslmode=" + url.QueryEscape(s.SSLMode),
	}
	return u.String()
}

// Postgres подключение к PostgreSQL через lib/pq
type Postgres struct {
	connection *sql.DB
	settings   Settings
}

func getOptionValue(optionName string, optionDefaultValue string, settings map[string]string) string {
	optionValue := settings[optionName]
	if optionValue == "" {
		log.Warnf("Ключ '%s' не найден в конфигурации хранилища. Используется значение по умолчанию '%s'.", optionName, optionDefaultValue)
		optionValue = optionDefaultValue
	}

	return optionValue
}

// FillSettings настройки с подстановкой значений по умолчанию
func FillSettings(settings map[string]string) Settings {
	return Settings{
		Host:     getOptionValue("host", "localhost", settings),
		Port:     getOptionValue("port", "5432", settings),
		User:     getOptionValue("user", "postgres", settings),
		Password: getOptionValue("password", "postgres", settings),
		Database: getOptionValue("database", "bus_tracking", settings),
		SSLMode:  getOptionValue("sslmode", "disable", settings),
	}
}

func (c *Postgres) Connect(settings map[string]string) error {
	var err error
	if settings == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	c.settings = FillSettings(settings)

	if c.connection, err = sql.Open("postgres", c.settings.DSN()); err != nil {
		return fmt.Errorf("ошибка подключения к PostgreSQL: %v", err)
	}

	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("PostgreSQL недоступен: %v", err)
	}
	return nil
}

func (c *Postgres) GetConnection() *sql.DB {
	return c.connection
}

func (c *Postgres) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}

// ValidIdentifier имя таблицы подставляется в запрос, поэтому допускаются только простые идентификаторы
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}
