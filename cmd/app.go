package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-kit/log"

	"github.com/Tiliavir/schedsync/internal/calsync"
	"github.com/Tiliavir/schedsync/internal/config"
	"github.com/Tiliavir/schedsync/internal/eventid"
	"github.com/Tiliavir/schedsync/internal/gcal"
	"github.com/Tiliavir/schedsync/internal/logging"
	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/storage"
	"github.com/Tiliavir/schedsync/internal/timecalc"
	"github.com/Tiliavir/schedsync/internal/tokens"
)

// app bundles the components every command works with.
type app struct {
	cfg    config.Config
	logger log.Logger
	store  storage.Backend
	tokens *tokens.FileStore
	engine *calsync.Engine
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	store, err := storage.BuildStoreFromDSN(cfg.DataDSN)
	if err != nil {
		return nil, err
	}
	tokenStore := tokens.NewFileStore(cfg.TokenDir)
	remote := gcal.NewClient(gcal.Config{
		Endpoint: cfg.Google.Endpoint,
		Timeout:  cfg.Google.Timeout(),
	})
	engine := calsync.New(calsync.Options{
		Store:          store,
		Works:          store,
		Ledger:         store,
		Remote:         remote,
		Tokens:         tokenStore,
		IDs:            eventid.NewGenerator(store, cfg.Sync.MaxIDAttempts),
		Logger:         logger,
		CreateAttempts: cfg.Sync.CreateAttempts,
	})
	return &app{cfg: cfg, logger: logger, store: store, tokens: tokenStore, engine: engine}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) userID() string {
	if userFlag != "" {
		return userFlag
	}
	return a.cfg.DefaultUser
}

// currentUser resolves the acting user. A user that was never linked has no
// record yet and acts as an unlinked user.
func (a *app) currentUser(ctx context.Context) (model.User, error) {
	id := a.userID()
	u, err := a.store.FindUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return model.User{ID: id}, nil
	}
	if err != nil {
		return model.User{}, fmt.Errorf("loading user %s: %w", id, err)
	}
	return u, nil
}

// withApp opens the app for the duration of fn.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

func today() string {
	return time.Now().Format(timecalc.DateLayout)
}
