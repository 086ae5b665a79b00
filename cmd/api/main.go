package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/petflowpe/facturacion/internal/application/billing"
	"github.com/petflowpe/facturacion/internal/infrastructure/postgres"
	infrasunat "github.com/petflowpe/facturacion/internal/infrastructure/sunat"
	"github.com/petflowpe/facturacion/internal/infrastructure/sunat/signer"
	httpRouter "github.com/petflowpe/facturacion/internal/interfaces/http"
	"github.com/petflowpe/facturacion/pkg/config"
	"github.com/petflowpe/facturacion/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("sunat_env", cfg.SUNAT.Env).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	documentRepo := postgres.NewDocumentRepository(pool)
	correlativeRepo := postgres.NewCorrelativeRepository(pool)
	issuerRepo := postgres.NewIssuerRepository(pool)
	attemptRepo := postgres.NewAttemptRepository(pool)

	// Certificado de firma. Sin certificado solo puede correrse en desarrollo:
	// SUNAT rechaza documentos sin firmar.
	var cert tls.Certificate
	if cfg.SUNAT.CertPath != "" {
		cert, err = signer.Load(cfg.SUNAT.CertPath, cfg.SUNAT.CertKeyPath, cfg.SUNAT.CertPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("cargar certificado de firma")
		}
	} else if cfg.App.Env == "production" {
		log.Fatal().Msg("SUNAT_CERT_PATH es obligatorio en producción")
	} else {
		log.Warn().Msg("sin certificado de firma: los documentos saldrán sin firmar (solo desarrollo)")
	}

	// Cliente SOAP SUNAT. En modo "dev" se apunta al ambiente beta con las
	// credenciales de prueba publicadas por SUNAT.
	sunatEnv := cfg.SUNAT.Env
	creds := infrasunat.Credentials{
		RUC:      cfg.SUNAT.RUC,
		SOLUser:  cfg.SUNAT.SOLUser,
		Password: cfg.SUNAT.SOLPassword,
	}
	if sunatEnv == infrasunat.EnvDev {
		sunatEnv = infrasunat.EnvBeta
		if creds.SOLUser == "" {
			creds.SOLUser, creds.Password = "MODDATOS", "moddatos"
		}
		log.Warn().Msg("SUNAT_ENV=dev: usando el ambiente beta de SUNAT")
	}
	transport, err := infrasunat.NewSOAPClient(sunatEnv, creds)
	if err != nil {
		log.Fatal().Err(err).Msg("cliente SOAP SUNAT")
	}
	transport.WithTimeout(cfg.Pipeline.SendTimeout)

	encoder := infrasunat.NewEncoder(cert)
	gateway := billing.NewGateway(
		documentRepo, attemptRepo, encoder, transport,
		billing.RetryPolicy{
			MaxSendAttempts: cfg.Pipeline.MaxSendAttempts,
			MaxPollAttempts: cfg.Pipeline.MaxPollAttempts,
			BaseBackoff:     cfg.Pipeline.BaseBackoff,
			MaxBackoff:      cfg.Pipeline.MaxBackoff,
		},
		log,
	)
	documentSvc := billing.NewService(
		documentRepo, correlativeRepo, issuerRepo, gateway,
		billing.ReconcilePolicy{
			MinAge:    cfg.Pipeline.ReconcileMinAge,
			BatchSize: cfg.Pipeline.ReconcileBatch,
		},
		log,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación PE API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Documents: documentSvc,
		JWTSecret: cfg.JWT.Secret,
	})

	// Reconciliador en segundo plano: retoma documentos con ticket pendiente
	// o envío interrumpido. La misma pasada puede dispararse vía API.
	reconcileCtx, stopReconcile := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(cfg.Pipeline.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-reconcileCtx.Done():
				return
			case <-ticker.C:
				if _, err := documentSvc.ReconcilePending(reconcileCtx); err != nil {
					log.Error().Err(err).Msg("pasada de reconciliación")
				}
			}
		}
	}()

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stopReconcile()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
