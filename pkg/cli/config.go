package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/adapter"
	"github.com/m-mizutani/qtda/pkg/adapter/kv"
	"github.com/m-mizutani/qtda/pkg/repository"
	"github.com/m-mizutani/qtda/pkg/usecase/search"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	storageMemory     = "memory"
	storageFile       = "file"
	storageRedis      = "redis"
	storageSQLite     = "sqlite"
	storageFirestore  = "firestore"
	storageGCS        = "gcs"
	defaultCollection = "qtda"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Storage
	storage       string
	storagePath   string
	redisAddr     string
	redisPassword string
	redisDB       int64
	keyPrefix     string
	project       string
	database      string
	collection    string
	bucket        string

	// Endpoints
	backendURL string
	apiURL     string
	addr       string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("QTDA_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("QTDA_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// storageFlags returns flags selecting and configuring the key-value store
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage",
			Aliases:     []string{"s"},
			Usage:       "Storage backend (file, memory, redis, sqlite, firestore, gcs)",
			Value:       storageFile,
			Sources:     cli.EnvVars("QTDA_STORAGE"),
			Destination: &cfg.storage,
		},
		&cli.StringFlag{
			Name:        "storage-path",
			Usage:       "Path of the file or sqlite storage (default: user config directory)",
			Sources:     cli.EnvVars("QTDA_STORAGE_PATH"),
			Destination: &cfg.storagePath,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for redis storage",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("QTDA_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("QTDA_REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("QTDA_REDIS_DB"),
			Destination: &cfg.redisDB,
		},
		&cli.StringFlag{
			Name:        "key-prefix",
			Usage:       "Key prefix for redis and gcs storage",
			Value:       "qtda/",
			Sources:     cli.EnvVars("QTDA_KEY_PREFIX"),
			Destination: &cfg.keyPrefix,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID for firestore storage",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Firestore collection",
			Value:       defaultCollection,
			Sources:     cli.EnvVars("QTDA_FIRESTORE_COLLECTION"),
			Destination: &cfg.collection,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for gcs storage",
			Sources:     cli.EnvVars("QTDA_STORAGE_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// backendFlags returns flags for the QA backend
func backendFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend-url",
			Usage:       "QA backend endpoint questions are forwarded to",
			Value:       adapter.DefaultBackendURL,
			Sources:     cli.EnvVars("JAVA_BACKEND_URL"),
			Destination: &cfg.backendURL,
		},
	}
}

// apiFlags returns flags for commands talking to a running `qtda serve`
func apiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "api-url",
			Usage:       "Base URL of the qtda server",
			Value:       adapter.DefaultAPIURL,
			Sources:     cli.EnvVars("QTDA_API_URL"),
			Destination: &cfg.apiURL,
		},
	}
}

// serverFlags returns flags for the HTTP server
func serverFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       ":3000",
			Sources:     cli.EnvVars("QTDA_ADDR"),
			Destination: &cfg.addr,
		},
	}
}

// setupLogger installs the configured logger as default and attaches it to ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.NewWithFormat(logging.Format(cfg.logFormat), cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

func defaultStoragePath(name string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to get user config directory")
	}
	dir = filepath.Join(dir, "qtda")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", goerr.Wrap(err, "failed to create config directory", goerr.V("dir", dir))
	}
	return filepath.Join(dir, name), nil
}

// newKV creates the configured key-value store
func (cfg *config) newKV(ctx context.Context) (kv.Store, error) {
	switch cfg.storage {
	case storageMemory:
		return kv.NewMemory(), nil

	case storageFile, "":
		path := cfg.storagePath
		if path == "" {
			p, err := defaultStoragePath("store.json")
			if err != nil {
				return nil, err
			}
			path = p
		}
		store, err := kv.NewFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create file storage")
		}
		return store, nil

	case storageSQLite:
		path := cfg.storagePath
		if path == "" {
			p, err := defaultStoragePath("store.db")
			if err != nil {
				return nil, err
			}
			path = p
		}
		store, err := kv.NewSQLite(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create sqlite storage")
		}
		return store, nil

	case storageRedis:
		store, err := kv.NewRedis(ctx, kv.RedisOptions{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       int(cfg.redisDB),
			Prefix:   cfg.keyPrefix,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create redis storage")
		}
		return store, nil

	case storageFirestore:
		if cfg.project == "" {
			return nil, goerr.New("project is required for firestore storage")
		}
		store, err := kv.NewFirestore(ctx, cfg.project, cfg.database, cfg.collection)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore storage")
		}
		return store, nil

	case storageGCS:
		if cfg.bucket == "" {
			return nil, goerr.New("bucket is required for gcs storage")
		}
		store, err := kv.NewCloudStorage(ctx, cfg.bucket, cfg.keyPrefix)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create cloud storage")
		}
		return store, nil

	default:
		return nil, goerr.New("unsupported storage",
			goerr.V("storage", cfg.storage),
			goerr.V("supported", []string{storageFile, storageMemory, storageRedis, storageSQLite, storageFirestore, storageGCS}))
	}
}

// stores bundles the repositories built on one key-value store
type stores struct {
	kv            kv.Store
	conversations *repository.ConversationStore
	searchLogs    *repository.SearchLogStore
}

func (s *stores) Close(ctx context.Context) {
	closer, ok := s.kv.(kv.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Warn("failed to close storage", logging.ErrAttr(err))
	}
}

// newStores creates the conversation and search log stores
func (cfg *config) newStores(ctx context.Context) (*stores, error) {
	store, err := cfg.newKV(ctx)
	if err != nil {
		return nil, err
	}
	return &stores{
		kv:            store,
		conversations: repository.NewConversationStore(store),
		searchLogs:    repository.NewSearchLogStore(store),
	}, nil
}

// newBackend creates the QA backend client
func (cfg *config) newBackend() *adapter.BackendClient {
	return adapter.NewBackend(cfg.backendURL)
}

// newSearchClient creates a client of the /api/search endpoint
func (cfg *config) newSearchClient() *adapter.SearchClient {
	return adapter.NewSearchClient(cfg.apiURL)
}

// newController creates a search controller over st
func (cfg *config) newController(ctx context.Context, searcher search.Searcher, st *stores) (*search.Controller, error) {
	ctrl, err := search.New(ctx, search.NewInput{
		Searcher:      searcher,
		Conversations: st.conversations,
		SearchLogs:    st.searchLogs,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create search controller")
	}
	return ctrl, nil
}
