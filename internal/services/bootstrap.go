package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"barber_booking_echo/internal/config"
	"barber_booking_echo/internal/store"
)

// Infra is the set of connections a process opens from its Config.
type Infra struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Firebase  *FirebaseClients
	Store     store.Store
	Publisher BookingPublisher

	closers []func() error
}

// Bootstrap opens the connections required by cfg. The Postgres database is
// opened whenever DATABASE_URL is set, since the callback audit and the
// scheduled tasks live there regardless of the intent/booking backend.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Infra, error) {
	infra := &Infra{Publisher: NopPublisher{}}

	if cfg.DatabaseURL != "" {
		db, err := InitDB(cfg.DatabaseURL, !cfg.IsProduction())
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		infra.DB = db
		if sqlDB, err := db.DB(); err == nil {
			infra.closers = append(infra.closers, sqlDB.Close)
		}
	}

	if cfg.StoreBackend == config.StoreBackendFirebase || fileExists(cfg.FirebaseCredentialsPath) {
		clients, err := InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseDatabaseURL)
		if err != nil {
			if cfg.StoreBackend == config.StoreBackendFirebase {
				infra.Close()
				return nil, fmt.Errorf("initialize firebase: %w", err)
			}
			log.Warn().Err(err).Msg("Firebase unavailable, admin routes disabled")
		} else {
			infra.Firebase = clients
		}
	}

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		infra.Store = store.NewGormStore(infra.DB)
	case config.StoreBackendRedis:
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		infra.Redis = client
		infra.closers = append(infra.closers, client.Close)
		infra.Store = store.NewRedisStore(client, "booking:")
	case config.StoreBackendFirebase:
		if infra.Firebase == nil || infra.Firebase.Database == nil {
			infra.Close()
			return nil, errors.New("firebase database client not initialized")
		}
		infra.Store = store.NewFirebaseStore(infra.Firebase.Database)
	case config.StoreBackendMemory:
		log.Warn().Msg("Using in-memory store, state is lost on restart")
		infra.Store = store.NewMemoryStore()
	default:
		infra.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.RabbitURL != "" {
		pub, err := NewRabbitPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, booking events disabled")
		} else {
			infra.Publisher = pub
			infra.closers = append(infra.closers, pub.Close)
		}
	}

	return infra, nil
}

// Close releases every connection opened by Bootstrap.
func (i *Infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			log.Warn().Err(err).Msg("Failed to close connection")
		}
	}
	i.closers = nil
}

// NewGateway returns the adapter for the configured provider.
func NewGateway(cfg *config.Config) (Gateway, error) {
	switch cfg.GatewayProvider {
	case config.GatewayMercadoPago:
		mp, err := NewMercadoPagoService(cfg)
		if err != nil {
			return nil, err
		}
		return mp, nil
	case config.GatewayMidtrans:
		return NewMidtransService(cfg), nil
	}
	return nil, fmt.Errorf("unknown gateway provider %q", cfg.GatewayProvider)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
