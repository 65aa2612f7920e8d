package cmd

import (
	"context"
	"time"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/auth"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/ledger"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/monday"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/runlock"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/timedoctor"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/transport"
)

// The constructors below build the API clients and stores from the loaded
// config. Each command calls only the ones it needs.

func newAuthProvider() *auth.Provider {
	rc := transport.New(transport.Options{
		BaseURL:    cfg.TimeDoctor.BaseURL,
		Timeout:    cfg.HTTP.Timeout,
		RetryCount: cfg.HTTP.RetryCount,
	}, logger)
	return auth.NewProvider(rc, auth.Options{
		Email:     cfg.TimeDoctor.Email,
		Password:  cfg.TimeDoctor.Password,
		CachePath: cfg.TimeDoctor.TokenCache,
		TTL:       time.Duration(cfg.TimeDoctor.TokenTTLDays) * 24 * time.Hour,
	}, logger.Named("auth"))
}

func newTimeDoctor(ctx context.Context, provider *auth.Provider) *timedoctor.Client {
	rc := transport.New(transport.Options{
		BaseURL:    cfg.TimeDoctor.BaseURL,
		Timeout:    cfg.HTTP.Timeout,
		RetryCount: cfg.HTTP.RetryCount,
		HTTPClient: provider.HTTPClient(ctx),
	}, logger)
	return timedoctor.NewClient(rc, cfg.TimeDoctor.CompanyID, logger.Named("timedoctor"))
}

func newMonday() *monday.Client {
	rc := transport.New(transport.Options{
		BaseURL:    cfg.Monday.APIURL,
		Timeout:    cfg.HTTP.Timeout,
		RetryCount: cfg.HTTP.RetryCount,
	}, logger)
	return monday.NewClient(rc, cfg.Monday.APIKey, cfg.Monday.APIVersion, logger.Named("monday"))
}

func openLedger(ctx context.Context) (*ledger.Ledger, error) {
	if err := cfg.ValidateLedger(); err != nil {
		return nil, err
	}
	return ledger.Open(ctx, cfg.Ledger.Driver, cfg.Ledger.DSN)
}

// newLocker returns the Redis run lock when one is configured. The returned
// func closes the Redis connection.
func newLocker() (runlock.Locker, func()) {
	if cfg.Lock.RedisAddr == "" {
		return runlock.Nop{}, func() {}
	}
	client := runlock.NewRedisClient(cfg.Lock.RedisAddr, cfg.Lock.RedisPassword, cfg.Lock.RedisDB)
	return runlock.NewRedisLocker(client, logger.Named("runlock")), func() { _ = client.Close() }
}
