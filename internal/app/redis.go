package app

import (
	"adops-backend/internal/common/logging"
	"adops-backend/internal/redis"
)

func (app *App) initializeRedis() error {
	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = client
	app.Logger.Info("redis initialized",
		logging.Field{Key: "address", Value: app.Config.RedisAddress})
	return nil
}
