package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type MongoDBClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDBClient connects and pings before the app starts, and disconnects on stop.
func NewMongoDBClient(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (*MongoDBClient, error) {
	clientOptions := options.Client().ApplyURI(cfg.MongoURI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "ping MongoDB")
	}

	log.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			log.Info("closing MongoDB connection")
			return client.Disconnect(stopCtx)
		},
	})
	return &MongoDBClient{Client: client, Database: client.Database(cfg.MongoDatabase)}, nil
}

// Module provides the configuration and the database connection.
var Module = fx.Module("config",
	fx.Provide(NewConfig),
	fx.Provide(NewMongoDBClient),
)
