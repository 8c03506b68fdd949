package rabbitmq

/*
Плагин для работы с RabbitMQ.

Настройки:

host = "localhost"
port = "5672"
user = "guest"
password = "guest"
exchange = "bus"
exchange_type = "topic"
key = "bus.location"
*/

import (
	"fmt"
	"net"
	"net/url"

	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

type Connector struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	key        string
}

func getOptionValue(name, defaultValue string, settings map[string]string) string {
	value := settings[name]
	if value == "" {
		log.Warnf("Ключ '%s' не найден в конфигурации хранилища. Используется значение по умолчанию '%s'.", name, defaultValue)
		value = defaultValue
	}
	return value
}

func amqpURL(cfg map[string]string) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(getOptionValue("user", "guest", cfg), getOptionValue("password", "guest", cfg)),
		Host:   net.JoinHostPort(getOptionValue("host", "localhost", cfg), getOptionValue("port", "5672", cfg)),
		Path:   "/",
	}
	return u.String()
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	c.exchange = getOptionValue("exchange", "bus", cfg)
	c.key = getOptionValue("key", "bus.location", cfg)
	exchangeType := getOptionValue("exchange_type", "topic", cfg)

	if c.connection, err = amqp.Dial(amqpURL(cfg)); err != nil {
		return fmt.Errorf("ошибка подключения к RabbitMQ: %v", err)
	}
	if c.channel, err = c.connection.Channel(); err != nil {
		return fmt.Errorf("не удалось открыть канал RabbitMQ: %v", err)
	}
	if err = c.channel.ExchangeDeclare(c.exchange, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("не удалось объявить exchange %s: %v", c.exchange, err)
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

	if err = c.channel.Publish(c.exchange, c.key, false, false, amqp.Publishing{
		ContentType:  "application/x-msgpack",
		DeliveryMode: amqp.Persistent,
		Body:         innerPkg,
	}); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}
