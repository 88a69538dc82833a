package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"authcore/internal/audit"
	auditrepo "authcore/internal/audit/repository"
	authhandler "authcore/internal/auth/handler"
	authservice "authcore/internal/auth/service"
	"authcore/internal/config"
	"authcore/internal/db"
	devicerepo "authcore/internal/device/repository"
	deviceservice "authcore/internal/device/service"
	"authcore/internal/identifier"
	"authcore/internal/otp"
	"authcore/internal/otp/delivery"
	"authcore/internal/ratelimit"
	"authcore/internal/security"
	"authcore/internal/server"
	sessionrepo "authcore/internal/session/repository"
	"authcore/internal/telemetry"
	telemetryotel "authcore/internal/telemetry/otel"
	userrepo "authcore/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, "authcore", cfg.OTelInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	users := userrepo.NewPostgresRepository(conn)
	devices := devicerepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil)

	challenges := otp.NewStore(rdb, cfg.ChallengeTTL())
	guard := ratelimit.NewGuard(rdb, ratelimit.Config{
		MaxFailures: cfg.LoginMaxFailures,
		Window:      cfg.LockoutWindow(),
	})

	senders := map[identifier.Kind]authservice.Sender{}
	if cfg.SMTPAddr != "" {
		senders[identifier.KindEmail] = delivery.NewEmailClient(cfg.SMTPAddr, cfg.SMTPFrom)
	}
	if cfg.SMSAPIKey != "" {
		senders[identifier.KindPhone] = delivery.NewSMSClient(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSender)
	}

	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	auth := authservice.NewAuthService(users, devices, sessions, challenges, guard,
		hasher, tokens, auditLogger, emitter, senders, cfg.OTPReturnToClient)
	registry := deviceservice.NewRegistry(devices, auditLogger)

	app := server.New(server.Deps{
		Auth:        auth,
		Registry:    registry,
		Tokens:      tokens,
		Cookie:      authhandler.CookieConfig{Name: cfg.RefreshCookieName, Secure: cfg.CookieSecure},
		Emitter:     emitter,
		Meter:       providers.MeterProvider.Meter("authcore.http"),
		DBPinger:    conn,
		RedisPinger: redisPinger{rdb},
	})

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let in-flight async telemetry emits finish before the providers go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

// redisPinger adapts the redis client to the health check's Pinger.
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
