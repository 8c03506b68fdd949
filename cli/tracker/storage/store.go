package storage

import (
	"errors"

	"github.com/daniil11ru/bustrack/cli/tracker/storage/store/nats"
	"github.com/daniil11ru/bustrack/cli/tracker/storage/store/rabbitmq"
	"github.com/daniil11ru/bustrack/cli/tracker/storage/store/redis"
	"github.com/daniil11ru/bustrack/cli/tracker/storage/store/tarantool_queue"
	log "github.com/sirupsen/logrus"
)

var ErrUnknownStorage = errors.New("storage isn't support yet")

type Store interface {
	Connector
	Saver
}

// Saver интерфейс для подключения внешних хранилищ
type Saver interface {
	// Save сохранение в хранилище
	Save(interface{ ToBytes() ([]byte, error) }) error
}

// Connector интерфейс для подключения внешних хранилищ
type Connector interface {
	// Init установка соединения с хранилищем
	Init(map[string]string) error

	// Close закрытие соединения с хранилищем
	Close() error
}

// Repository набор выходных хранилищ
type Repository struct {
	storages []Saver
	closers  []Connector
}

// AddStore добавляет хранилище для сохранения данных
func (r *Repository) AddStore(s Saver) {
	r.storages = append(r.storages, s)
	if c, ok := s.(Connector); ok {
		r.closers = append(r.closers, c)
	}
}

func (r *Repository) Len() int {
	return len(r.storages)
}

// Save сохраняет данные во все установленные хранилища, ошибка одного не мешает остальным
func (r *Repository) Save(m interface{ ToBytes() ([]byte, error) }) error {
	var first error
	for _, store := range r.storages {
		if err := store.Save(m); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LoadStorages загружает хранилища из структуры конфига. Пустой раздел означает отключённый экспорт.
func (r *Repository) LoadStorages(storages map[string]map[string]string) error {
	var db Store
	for store, params := range storages {
		switch store {
		case "rabbitmq":
			db = &rabbitmq.Connector{}
		case "nats":
			db = &nats.Connector{}
		case "tarantool_queue":
			db = &tarantool_queue.Connector{}
		case "redis":
			db = &redis.Connector{}
		default:
			return ErrUnknownStorage
		}

		if err := db.Init(params); err != nil {
			return err
		}

		log.WithField("store", store).Info("Подключено хранилище экспорта")
		r.AddStore(db)
	}
	return nil
}

func (r *Repository) Close() {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			log.WithField("err", err).Warn("Ошибка закрытия хранилища экспорта")
		}
	}
}

// NewRepository создает пустой репозиторий
func NewRepository() *Repository {
	return &Repository{}
}
