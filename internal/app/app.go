package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"foodieqa/internal/cache"
	"foodieqa/internal/config"
	"foodieqa/internal/dataset"
	"foodieqa/internal/knowledge"
	"foodieqa/internal/model"
	"foodieqa/internal/repository"
	"foodieqa/internal/resolver"
	"foodieqa/internal/score"
)

const pingTimeout = 5 * time.Second

// App holds the connections and stores shared by the commands. Fields stay
// nil until the matching Open/Connect call succeeds.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Mongo *mongo.Client
	DB    *mongo.Database
	Redis *redis.Client

	Knowledge knowledge.Store
	Dishes    repository.DishStore

	closers []func() error
}

// New creates an App over cfg. Nothing is connected yet.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{Config: cfg, Logger: logger}
}

// ConnectMongo connects and pings the configured MongoDB
func (a *App) ConnectMongo(ctx context.Context) error {
	if a.Mongo != nil {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.Config.Storage.MongoURI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("ping mongo: %w", err)
	}
	a.Mongo = client
	a.DB = client.Database(a.Config.Storage.MongoDatabase)
	a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
	a.Logger.Info("Connected to MongoDB", zap.String("database", a.Config.Storage.MongoDatabase))
	return nil
}

// ConnectRedis connects and pings Redis. It is a no-op when no address is
// configured.
func (a *App) ConnectRedis(ctx context.Context) error {
	if a.Redis != nil || a.Config.Storage.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: a.Config.Storage.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		rdb.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	a.Redis = rdb
	a.closers = append(a.closers, rdb.Close)
	a.Logger.Info("Connected to Redis", zap.String("addr", a.Config.Storage.RedisAddr))
	return nil
}

// Embedder returns the Gemini embedder when the API is configured and the
// offline hash embedder otherwise
func (a *App) Embedder(ctx context.Context) (knowledge.Embedder, error) {
	ai := a.Config.AI
	if !ai.IsEnabled() {
		return knowledge.NewHashEmbedder(0), nil
	}
	return knowledge.NewGenAIEmbedder(ctx, ai.APIKey, ai.Models.Embed, ai.EmbedTaskType)
}

// OpenKnowledge opens the SQLite knowledge store, behind the Redis search
// cache when Redis is connected
func (a *App) OpenKnowledge(ctx context.Context) (knowledge.Store, error) {
	if a.Knowledge != nil {
		return a.Knowledge, nil
	}
	emb, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	path := a.Config.DataPath(a.Config.Storage.KnowledgeDB)
	store, err := knowledge.NewSQLiteStore(path, emb, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store %s: %w", path, err)
	}
	a.closers = append(a.closers, store.Close)
	a.Logger.Debug("Opened knowledge store", zap.String("path", path), zap.String("embedder", emb.Name()))

	a.Knowledge = store
	if a.Redis != nil {
		ttl := time.Duration(a.Config.Storage.CacheTTLSeconds) * time.Second
		a.Knowledge = cache.NewSearchCache(a.Redis, store, ttl, a.Logger)
	}
	return a.Knowledge, nil
}

// OpenDishes returns the dish-record store named by storage.dish_source. A
// missing recipes file yields an empty store.
func (a *App) OpenDishes(ctx context.Context) (repository.DishStore, error) {
	if a.Dishes != nil {
		return a.Dishes, nil
	}
	if a.Config.Storage.DishSource == config.DishSourceMongo {
		if err := a.ConnectMongo(ctx); err != nil {
			return nil, err
		}
		a.Dishes = repository.NewDishRepo(a.DB)
		return a.Dishes, nil
	}

	path := a.Config.DataPath(a.Config.Data.RecipesFile)
	recs, err := dataset.LoadRecipes(path)
	if errors.Is(err, fs.ErrNotExist) {
		a.Logger.Warn("Recipes file not found; structured context will be empty", zap.String("path", path))
		recs = nil
	} else if err != nil {
		return nil, err
	}
	a.Dishes = repository.NewMapDishStore(recs)
	return a.Dishes, nil
}

// LoadQuestions reads the question file and the category map. Categories
// from question_type_analysis.json override those on the records.
func (a *App) LoadQuestions() ([]model.Question, score.CategoryMap, error) {
	questions, err := dataset.LoadQuestions(a.Config.DataPath(a.Config.Data.QuestionsFile))
	if err != nil {
		return nil, nil, err
	}
	categories := dataset.CategoryMapFromQuestions(questions)
	if name := a.Config.Data.CategoryMapFile; name != "" {
		override, err := dataset.LoadCategoryMap(a.Config.DataPath(name))
		if err != nil {
			return nil, nil, err
		}
		categories = dataset.MergeCategoryMaps(categories, override)
	}
	return questions, categories, nil
}

// LoadPredictions reads the dish-identification output. A missing file is
// not an error; predicted-dish context then degrades to its placeholder.
func (a *App) LoadPredictions() ([]model.DishPrediction, error) {
	path := a.Config.DataPath(a.Config.Data.PredictionsFile)
	preds, err := dataset.LoadPredictions(path)
	if errors.Is(err, fs.ErrNotExist) {
		a.Logger.Warn("Predictions file not found", zap.String("path", path))
		return nil, nil
	}
	return preds, err
}

// Resolver builds the context resolver over every configured source
func (a *App) Resolver(ctx context.Context) (*resolver.Resolver, error) {
	store, err := a.OpenKnowledge(ctx)
	if err != nil {
		return nil, err
	}
	dishes, err := a.OpenDishes(ctx)
	if err != nil {
		return nil, err
	}
	preds, err := a.LoadPredictions()
	if err != nil {
		return nil, err
	}
	return resolver.New(a.Logger,
		resolver.WithKnowledgeStore(store),
		resolver.WithDishStore(dishes),
		resolver.WithPredictions(preds),
		resolver.WithTopK(a.Config.Run.SnippetTopK),
	), nil
}

// Close releases everything opened, newest first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
