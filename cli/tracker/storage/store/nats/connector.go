package nats

/*
Плагин для публикации в NATS.

Настройки:

servers = "nats://localhost:4222"
subject = "bus.location"
*/

import (
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Connector struct {
	connection *nats.Conn
	subject    string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	servers := cfg["servers"]
	if servers == "" {
		log.Warnf("Ключ 'servers' не найден в конфигурации хранилища. Используется значение по умолчанию '%s'.", nats.DefaultURL)
		servers = nats.DefaultURL
	}
	c.subject = cfg["subject"]
	if c.subject == "" {
		log.Warnf("Ключ 'subject' не найден в конфигурации хранилища. Используется значение по умолчанию 'bus.location'.")
		c.subject = "bus.location"
	}

	if c.connection, err = nats.Connect(servers, nats.Name("bustrack")); err != nil {
		return fmt.Errorf("ошибка подключения к NATS: %v", err)
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

	if err = c.connection.Publish(c.subject, innerPkg); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Drain()
}
