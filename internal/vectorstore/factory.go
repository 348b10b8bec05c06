package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/pkg/awsutil"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
	"github.com/xxxsen/docqa/internal/repo"
)

const defaultDynamoDBRegion = "ap-northeast-2"

// Deps carries the shared resources a backend may need.
type Deps struct {
	DB       *sql.DB
	Driver   string
	DynamoDB DynamoDBAPI
}

type Factory func(ctx context.Context, args interface{}, deps Deps) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func init() {
	Register(BackendMemory, createMemoryBackend)
	Register(BackendSQL, createSQLBackend)
	Register(BackendDynamoDB, createDynamoDBBackend)
}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

// New builds the configured backend and wraps it in a Store.
func New(ctx context.Context, cfg config.VectorStoreConfig, deps Deps) (*Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		key = BackendMemory
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported vector store type: %s", appErr.ErrConfiguration, cfg.Type)
	}
	backend, err := factory(ctx, cfg.Data, deps)
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("vector store initialized", zap.String("backend", backend.Name()))
	return NewStore(backend), nil
}

func createMemoryBackend(ctx context.Context, args interface{}, deps Deps) (Backend, error) {
	return NewMemoryBackend(), nil
}

func createSQLBackend(ctx context.Context, args interface{}, deps Deps) (Backend, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("%w: sql vector store requires a database", appErr.ErrConfiguration)
	}
	return NewSQLBackend(repo.NewVectorDocumentRepo(deps.DB, deps.Driver)), nil
}

type dynamoConfig struct {
	awsutil.Config
	Table string `json:"table"`
}

func createDynamoDBBackend(ctx context.Context, args interface{}, deps Deps) (Backend, error) {
	cfg := &dynamoConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	client := deps.DynamoDB
	if client == nil {
		loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		awsCfg, err := awsutil.Load(loadCtx, cfg.Config, defaultDynamoDBRegion)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", appErr.ErrConfiguration, err)
		}
		client = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = awsutil.Endpoint(cfg.Config)
		})
	}
	return NewDynamoDBBackend(client, cfg.Table), nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: encode vector store config: %w", appErr.ErrConfiguration, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decode vector store config: %w", appErr.ErrConfiguration, err)
	}
	return nil
}
