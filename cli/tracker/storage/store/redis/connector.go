package redis

/*
Плагин для публикации в канал Redis.

Настройки:

addr = "localhost:6379"
password = ""
db = "0"
channel = "bus.location"
*/

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const saveTimeout = 5 * time.Second

type Connector struct {
	client  *redis.Client
	channel string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	addr := cfg["addr"]
	if addr == "" {
		log.Warnf("Ключ 'addr' не найден в конфигурации хранилища. Используется значение по умолчанию 'localhost:6379'.")
		addr = "localhost:6379"
	}
	c.channel = cfg["channel"]
	if c.channel == "" {
		log.Warnf("Ключ 'channel' не найден в конфигурации хранилища. Используется значение по умолчанию 'bus.location'.")
		c.channel = "bus.location"
	}

	db := 0
	if raw := cfg["db"]; raw != "" {
		var err error
		if db, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("не удалось разобрать db: %v", err)
		}
	}

	c.client = redis.NewClient(&redis.Options{Addr: addr, Password: cfg["password"], DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis недоступен: %v", err)
	}
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

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err = c.client.Publish(ctx, c.channel, innerPkg).Err(); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
