package mongodb

/*
Справочник в MongoDB, коллекция транспорта веб-приложения.

Настройки:

uri = "mongodb://localhost:27017"
database = "bus-tracking"
collection = "buses"
upsert = "true"
*/

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/types"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 5 * time.Second

type locationDocument struct {
	Latitude  float64   `bson:"latitude"`
	Longitude float64   `bson:"longitude"`
	Timestamp time.Time `bson:"timestamp,omitempty"`
}

type busDocument struct {
	Location *locationDocument `bson:"location,omitempty"`
}

type Connector struct {
	client     *mongo.Client
	collection *mongo.Collection
	upsert     bool
}

func getOptionValue(name, defaultValue string, settings map[string]string) string {
	value := settings[name]
	if value == "" {
		log.Warnf("Ключ '%s' не найден в настройках справочника. Используется значение по умолчанию '%s'.", name, defaultValue)
		value = defaultValue
	}
	return value
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	uri := getOptionValue("uri", "mongodb://localhost:27017", cfg)
	database := getOptionValue("database", "bus-tracking", cfg)
	collection := getOptionValue("collection", "buses", cfg)

	upsert, err := strconv.ParseBool(getOptionValue("upsert", "true", cfg))
	if err != nil {
		return fmt.Errorf("не удалось разобрать upsert: %v", err)
	}
	c.upsert = upsert

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(connectTimeout)
	if c.client, err = mongo.Connect(ctx, clientOptions); err != nil {
		return fmt.Errorf("ошибка подключения к MongoDB: %v", err)
	}
	if err = c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("MongoDB недоступна: %v", err)
	}

	c.collection = c.client.Database(database).Collection(collection)
	return nil
}

// busFilter busId в коллекции числовой, нечисловые идентификаторы ищутся как строки
func busFilter(vehicleID types.VehicleID) bson.M {
	if n, err := strconv.ParseInt(string(vehicleID), 10, 64); err == nil {
		return bson.M{"busId": n}
	}
	return bson.M{"busId": string(vehicleID)}
}

func (c *Connector) ReadLastPosition(ctx context.Context, vehicleID types.VehicleID) (types.Position, error) {
	var bus busDocument
	err := c.collection.FindOne(ctx, busFilter(vehicleID),
		options.FindOne().SetProjection(bson.M{"location": 1})).Decode(&bus)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Position{}, types.ErrUnknownVehicle
	}
	if err != nil {
		return types.Position{}, fmt.Errorf("не удалось прочитать транспорт %s: %w", vehicleID, err)
	}

	return toPosition(bus)
}

func toPosition(bus busDocument) (types.Position, error) {
	if bus.Location == nil {
		return types.Position{}, types.ErrUnknownVehicle
	}
	position := types.Position{
		Latitude:   bus.Location.Latitude,
		Longitude:  bus.Location.Longitude,
		ObservedAt: bus.Location.Timestamp,
	}
	if position.IsPlaceholder() {
		return types.Position{}, types.ErrUnknownVehicle
	}
	return position, nil
}

func (c *Connector) WriteLastPosition(ctx context.Context, vehicleID types.VehicleID, position types.Position) error {
	update := bson.M{"$set": bson.M{"location": locationDocument{
		Latitude:  position.Latitude,
		Longitude: position.Longitude,
		Timestamp: position.ObservedAt,
	}}}

	result, err := c.collection.UpdateOne(ctx, busFilter(vehicleID), update, options.Update().SetUpsert(c.upsert))
	if err != nil {
		return fmt.Errorf("не удалось обновить местоположение транспорта %s: %w", vehicleID, err)
	}
	if !c.upsert && result.MatchedCount == 0 {
		return fmt.Errorf("не удалось обновить местоположение транспорта %s: %w", vehicleID, types.ErrUnknownVehicle)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}
