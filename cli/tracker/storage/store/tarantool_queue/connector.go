package tarantool_queue

/*
Плагин для работы с Tarantool queue.

Настройки:

host = "localhost"
port = "3301"
user = "guest"
password = ""
max_recons = "5"
timeout = "1"
reconnect = "1"
queue = "bus_location"
*/

import (
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarantool/go-tarantool"
	"github.com/tarantool/go-tarantool/queue"
)

type Connector struct {
	connection *tarantool.Connection
	queue      queue.Queue
}

func getOptionValue(name, defaultValue string, settings map[string]string) string {
	value := settings[name]
	if value == "" {
		log.Warnf("Ключ '%s' не найден в конфигурации хранилища. Используется значение по умолчанию '%s'.", name, defaultValue)
		value = defaultValue
	}
	return value
}

func options(cfg map[string]string) (tarantool.Opts, error) {
	maxRecons, err := strconv.Atoi(getOptionValue("max_recons", "5", cfg))
	if err != nil {
		return tarantool.Opts{}, fmt.Errorf("не удалось получить MaxReconnects: %v", err)
	}
	timeout, err := strconv.Atoi(getOptionValue("timeout", "1", cfg))
	if err != nil {
		return tarantool.Opts{}, fmt.Errorf("не удалось получить timeout: %v", err)
	}
	reconnect, err := strconv.Atoi(getOptionValue("reconnect", "1", cfg))
	if err != nil {
		return tarantool.Opts{}, fmt.Errorf("не удалось получить reconnect: %v", err)
	}
	return tarantool.Opts{
		Timeout:       time.Duration(timeout) * time.Second,
		Reconnect:     time.Duration(reconnect) * time.Second,
		MaxReconnects: uint(maxRecons),
		User:          getOptionValue("user", "guest", cfg),
		Pass:          cfg["password"],
	}, nil
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	opts, err := options(cfg)
	if err != nil {
		return err
	}

	conStr := fmt.Sprintf("%s:%s", getOptionValue("host", "localhost", cfg), getOptionValue("port", "3301", cfg))
	if c.connection, err = tarantool.Connect(conStr, opts); err != nil {
		return fmt.Errorf("не удалось подключиться к Tarantool: %v", err)
	}
	c.queue = queue.New(c.connection, getOptionValue("queue", "bus_location", cfg))
	return nil
}

func (c *Connector) Save(msg interface{ ToBytes() ([]byte, error) }) error {
	if msg == nil {
		return fmt.Errorf("некорректная ссылка на запись")
	}

	innerPkg, err := msg.ToBytes()
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %v", err)
	}

	if _, err = c.queue.Put(innerPkg); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}
