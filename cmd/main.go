package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	httpctx "github.com/keysmith-dev/keysmith-server/internal/api/http/context"
	"github.com/keysmith-dev/keysmith-server/internal/api/http/router"
	"github.com/keysmith-dev/keysmith-server/internal/config"
	"github.com/keysmith-dev/keysmith-server/internal/crypto"
	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/mailer"
	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/repository/postgres"
	"github.com/keysmith-dev/keysmith-server/internal/server"
	"github.com/keysmith-dev/keysmith-server/internal/service"
	storage "github.com/keysmith-dev/keysmith-server/internal/storage/minio"
	"github.com/keysmith-dev/keysmith-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel, cfg.LogJSON)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	accountRepo := postgres.NewAccountRepository(db)
	authRepo := postgres.NewAuthRepository(db)
	verificationRepo := postgres.NewVerificationRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	handshakeRepo := postgres.NewHandshakeRepository(db)
	vaultRepo := postgres.NewVaultRepository(db)
	orgRepo := postgres.NewOrgRepository(db)
	groupRepo := postgres.NewGroupRepository(db)
	inviteRepo := postgres.NewInviteRepository(db)

	tokenManager := token.NewJWT(cfg.JWT.Secret)
	provider := crypto.NewProvider()
	mail := mailer.New(cfg.Mail, logger)
	ctxMgr := httpctx.NewManager()

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	attachmentStore, err := storage.NewStore(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize attachment storage", "error", err)
	}

	authService := service.NewAuth(accountRepo, authRepo, handshakeRepo, sessionRepo, tokenManager, provider, service.AuthConfig{
		Secret:       cfg.Auth.Secret,
		ProofRPS:     cfg.Auth.ProofRPS,
		ProofBurst:   cfg.Auth.ProofBurst,
		HandshakeTTL: time.Duration(cfg.Auth.HandshakeTTL) * time.Second,
		SessionTTL:   time.Duration(cfg.Auth.SessionTTL) * time.Minute,
		DefaultKDF: crypto.KDFParams{
			Algo:       crypto.KDFAlgoPBKDF2SHA256,
			Iterations: cfg.KDF.Iterations,
			KeyLen:     cfg.KDF.KeyLen,
		},
		DefaultSaltLen: cfg.KDF.SaltLen,
	}, logger)
	accountService := service.NewAccount(accountRepo, authRepo, sessionRepo, verificationRepo, mail, provider,
		time.Duration(cfg.Auth.VerifyTokenTTL)*time.Minute, logger)
	vaultService := service.NewVault(vaultRepo, orgRepo, attachmentStore, logger)
	orgService := service.NewOrg(orgRepo, groupRepo, inviteRepo, logger)

	apiHandler := router.New(router.Config{
		AuthService:    authService,
		AccountService: accountService,
		VaultService:   vaultService,
		OrgService:     orgService,
		TokenManager:   tokenManager,
		SessionStore:   sessionRepo,
		ContextManager: ctxMgr,
		RateRPS:        cfg.HTTP.RateRPS,
		RateBurst:      cfg.HTTP.RateBurst,
		Logger:         logger,
	})
	httpServer := server.NewHTTPServer(apiHandler, fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(httpServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
