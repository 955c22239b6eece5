package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/q3log/internal/api"
	"github.com/victornm/q3log/internal/archive"
	"github.com/victornm/q3log/internal/event"
	"github.com/victornm/q3log/internal/ingest"
	"github.com/victornm/q3log/internal/leaderboard"
	"github.com/victornm/q3log/internal/metrics"
	"github.com/victornm/q3log/internal/telemetry"
)

const serviceName = "q3log"

type Config struct {
	Log struct {
		Level  string
		Format string
	}

	Source struct {
		Path string
	}

	Report struct {
		Type   string
		Format string
		Output string
	}

	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	// Redis and Postgres are disabled when their addresses are empty.
	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
			TTL    time.Duration
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Archive struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}
}

// DefaultConfig returns the configuration used when neither file, env nor flags set a value.
func DefaultConfig() Config {
	var c Config
	c.Log.Level = "info"
	c.Log.Format = telemetry.LogFormatText
	c.Report.Type = "all"
	c.Report.Format = "text"
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Redis.Leaderboard.Prefix = serviceName
	c.Redis.Leaderboard.TTL = 24 * time.Hour
	c.Redis.Pubsub.Prefix = serviceName
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			archive *pgxpool.Pool
		}
	}

	service struct {
		ingest      *ingest.Service
		leaderboard *leaderboard.Service
		archive     *archive.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()

	if err := s.ingestSource(); err != nil {
		return nil, fmt.Errorf("server: ingest source: %w", err)
	}

	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, addrs []string, pass string) (redis.UniversalClient, error) {
		if len(addrs) == 0 {
			slog.Info("server: redis disabled", "client", name)
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		if addr == "" {
			slog.Info("server: postgres disabled", "db", name)
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	a := s.c.Postgres.Archive
	s.infra.postgres.archive, err = connect(a.Addr, a.User, a.Pass, a.Name)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	s.service.ingest = ingest.NewService(ingest.Config{
		EventBus: s.eb,
	})

	if s.infra.redis.leaderboard != nil {
		s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
			EventBus: s.eb,
			Redis:    s.infra.redis.leaderboard,
			Prefix:   s.c.Redis.Leaderboard.Prefix,
			TTL:      s.c.Redis.Leaderboard.TTL,
		})
	}

	if s.infra.postgres.archive != nil {
		s.service.archive = archive.NewService(archive.Config{
			EventBus: s.eb,
			DB:       s.infra.postgres.archive,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.service.archive.Migrate(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), metrics.GinMiddleware())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor()...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	c := api.Config{
		Router:       e,
		EventBus:     s.eb,
		Ingest:       s.service.ingest,
		Leaderboard:  s.service.leaderboard,
		Archive:      s.service.archive,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	}
	if s.infra.redis.pubsub != nil {
		c.Redis = s.infra.redis.pubsub
	}
	api.New(c)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) ingestSource() error {
	if s.c.Source.Path == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := s.service.ingest.Ingest(ctx, ingest.IngestRequest{Path: s.c.Source.Path})
	return err
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for _, r := range []redis.UniversalClient{s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	if s.infra.postgres.archive != nil {
		s.infra.postgres.archive.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
