package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/db"
	"github.com/RGU-Computing/clood/internal/embedcache"
	"github.com/RGU-Computing/clood/internal/handler"
	"github.com/RGU-Computing/clood/internal/job"
	"github.com/RGU-Computing/clood/internal/lock"
	"github.com/RGU-Computing/clood/internal/middleware"
	"github.com/RGU-Computing/clood/internal/observability"
	"github.com/RGU-Computing/clood/internal/ontology"
	"github.com/RGU-Computing/clood/internal/repo"
	"github.com/RGU-Computing/clood/internal/retrieval"
	"github.com/RGU-Computing/clood/internal/schedule"
	"github.com/RGU-Computing/clood/internal/service"
	"github.com/RGU-Computing/clood/internal/vectorizer"
)

type app struct {
	cfg      *config.Config
	db       *sqlx.DB
	redis    *goredis.Client
	shutdown observability.ShutdownFunc

	cacheRepo *repo.EmbeddingCacheRepo
	grids     ontology.Service
	auth      *service.AuthService
	tokens    *service.TokenService
	projects  *service.ProjectService
	ontology  *service.OntologyService
	options   *service.OptionService
	casebase  *service.CasebaseService
	cbr       *service.CBRService
	configs   *service.ConfigService
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.shutdown, err = observability.InitTracing(ctx, cfg.Trace)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.db, err = db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(a.db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	store, err := casestore.New(cfg.CasebaseStore, a.db)
	if err != nil {
		return nil, fmt.Errorf("init casebase store: %w", err)
	}

	a.cacheRepo = repo.NewEmbeddingCacheRepo(a.db)
	var wrappers []vectorizer.Wrapper
	if cfg.Vectorizer.DBCache {
		wrappers = append(wrappers, embedcache.DBWrapper(a.cacheRepo))
	}
	if cfg.Vectorizer.LRUSize > 0 {
		wrappers = append(wrappers, embedcache.LRUWrapper(cfg.Vectorizer.LRUSize, time.Duration(cfg.Vectorizer.LRUTTLSeconds)*time.Second))
	}
	vec, err := vectorizer.New(cfg.Vectorizer, wrappers...)
	if err != nil {
		return nil, fmt.Errorf("init vectorizer: %w", err)
	}

	a.grids = a.newGrids()

	projectRepo := repo.NewProjectRepo(a.db)
	a.auth = service.NewAuthService(cfg.Admin, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	a.tokens = service.NewTokenService(repo.NewTokenRepo(a.db), []byte(cfg.JWTSecret))
	a.ontology = service.NewOntologyService(a.grids)
	a.projects = service.NewProjectService(projectRepo, store, a.ontology, vec.Dimension)
	a.options = service.NewOptionService(a.projects, projectRepo, store)
	var caseOpts []service.CasebaseOption
	if a.redis != nil {
		caseOpts = append(caseOpts, service.WithCaseLocker(lock.NewRedis(a.redis)))
	}
	a.casebase = service.NewCasebaseService(a.projects, store, vec, a.ontology, a.options, caseOpts...)
	engine := retrieval.NewEngine(store, vec, a.grids)
	a.cbr = service.NewCBRService(a.projects, a.casebase, engine, vectorizer.NewTextSimilarity(cfg.Vectorizer, vec))
	a.configs = service.NewConfigService(repo.NewConfigRepo(a.db))

	logutil.GetLogger(ctx).Info("application wired",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("casebase_store", cfg.CasebaseStore.Type),
		zap.String("ontology_mode", cfg.Ontology.Mode),
		zap.Int("embedding_models", len(cfg.Vectorizer.Models)),
	)
	return a, nil
}

// newGrids picks the in-process builder or a remote grid service.
func (a *app) newGrids() ontology.Service {
	oc := a.cfg.Ontology
	if oc.Mode == "remote" {
		return ontology.NewRemoteService(oc.RemoteEndpoint, oc.RemoteToken, time.Duration(oc.FetchTimeout)*time.Second)
	}
	var opts []ontology.BuilderOption
	if oc.Redis.Addr != "" {
		a.redis = goredis.NewClient(&goredis.Options{
			Addr:     oc.Redis.Addr,
			Password: oc.Redis.Password,
			DB:       oc.Redis.DB,
		})
		opts = append(opts, ontology.WithLocker(lock.NewRedis(a.redis), time.Duration(oc.LockTTLSeconds)*time.Second))
	}
	return ontology.NewBuilder(repo.NewGridRepo(a.db), ontology.NewSourceLoader(oc), opts...)
}

func (a *app) Close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			logutil.GetLogger(ctx).Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) serve() error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.Int("rate_limit_ms", cfg.RateLimitMS),
	)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(a.auth, a.tokens),
		Projects:  handler.NewProjectHandler(a.projects, a.options),
		Cases:     handler.NewCaseHandler(a.casebase),
		CBR:       handler.NewCBRHandler(a.cbr),
		Config:    handler.NewConfigHandler(a.configs),
		Ontology:  handler.NewOntologyHandler(a.projects, a.ontology, a.grids),
		Verifier:  a.auth,
		RateLimit: time.Duration(cfg.RateLimitMS) * time.Millisecond,
	}
	middlewares := []gin.HandlerFunc{middleware.RequestID()}
	if cfg.Trace.Enabled {
		middlewares = append(middlewares, otelgin.Middleware(cfg.Trace.ServiceName))
	}
	middlewares = append(middlewares, middleware.CORS(cfg.CORSAllowlist), gzip.Gzip(gzip.DefaultCompression))

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(middlewares...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if _, err := scheduler.AddAll(
		schedule.Entry{Job: job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.Schedule.CacheMaxAgeDays), Spec: cfg.Schedule.EmbeddingCacheCleanup},
		schedule.Entry{Job: job.NewAttributeRefreshJob(a.options), Spec: cfg.Schedule.AttributeRefresh},
	); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
