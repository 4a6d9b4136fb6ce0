package main // Entry point package

import (
    "context"           // context for graceful shutdown and sweep runs
    "log"               // Logging library
    "os"                // os.Signal plumbing
    "os/signal"         // notify on interrupt
    "syscall"           // SIGTERM constant
    "time"              // shutdown timeout and sweep clocks

    "github.com/joho/godotenv"    // loads .env files in development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/talebm/tutoring-enrollment/internal/clock"      // real/fixed clocks
    "github.com/talebm/tutoring-enrollment/internal/config"     // Internal config loader
    "github.com/talebm/tutoring-enrollment/internal/database"   // MySQL connection helper
    "github.com/talebm/tutoring-enrollment/internal/enrollment" // reservation ledger and sweepers
    "github.com/talebm/tutoring-enrollment/internal/handler"    // HTTP handlers
    "github.com/talebm/tutoring-enrollment/internal/middleware" // rate limit and cache middleware
    "github.com/talebm/tutoring-enrollment/internal/payment"    // card provider client
    "github.com/talebm/tutoring-enrollment/internal/queue"      // RabbitMQ consumers
    "github.com/talebm/tutoring-enrollment/internal/repository" // MySQL repositories
    "github.com/talebm/tutoring-enrollment/internal/router"     // Internal router setup
    "github.com/talebm/tutoring-enrollment/internal/scheduler"  // periodic sweep runner
    queue_publisher "github.com/talebm/tutoring-enrollment/internal/service" // AMQP publishers
)

func main() {
    // .env is optional; real deployments pass variables through the
    // environment.
    _ = godotenv.Load()

    cfg := config.Load()               // Load environment config
    sweepCfg := config.LoadSweepConfig() // sweep intervals and hold windows

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis is optional infrastructure.  A nil client disables rate
    // limiting and response caching rather than failing startup.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Println("redis unavailable: rate limiting and response cache disabled")
    }

    // Repositories.
    userRepo := repository.NewUserRepo(db)
    tokenRepo := repository.NewTokenRepo(db)
    classRepo := repository.NewClassRepo(db)
    studentRepo := repository.NewStudentRepo(db)
    reservationRepo := repository.NewReservationRepo(db)
    notificationRepo := repository.NewNotificationRepo(db)
    referralRepo := repository.NewReferralRepo(db)
    sessionRepo := repository.NewPaymentSessionRepo(db)

    // Outbound messaging.  The publisher dials per publish, so a broker
    // outage degrades to logged errors instead of blocking requests.
    events := queue_publisher.NewPublisher(cfg.RabbitURL)
    sender := queue_publisher.NewQueueSender(cfg.RabbitURL)
    notifier := enrollment.NewNotifier(notificationRepo, sender)

    // Card provider client.  Load() leaves the payment settings empty
    // when unset; the ledger rejects the card path in that case.
    var provider enrollment.PaymentProvider
    if cfg.PaymentAPIBase != "" {
        provider = payment.NewClient(cfg.PaymentAPIBase, cfg.PaymentAPIKey,
            cfg.PaymentSuccessURL, cfg.PaymentCancelURL, 10*time.Second)
    }

    ledger := &enrollment.Ledger{
        Reservations:   reservationRepo,
        Classes:        classRepo,
        Recipients:     studentRepo,
        Referrals:      referralRepo,
        Sessions:       sessionRepo,
        Payments:       provider,
        Notifier:       notifier,
        Events:         events,
        Clock:          clock.Real{},
        EtransferHold:  sweepCfg.EtransferHold,
        ApprovalWindow: sweepCfg.ApprovalWindow,
    }

    expiry := &enrollment.ExpirySweeper{
        Reservations: reservationRepo,
        Recipients:   studentRepo,
        Notifier:     notifier,
        Events:       events,
    }
    reminders := &enrollment.ReminderSweeper{
        Classes:    classRepo,
        Recipients: studentRepo,
        Notifier:   notifier,
    }

    // Background consumers: audit log for enrollment events and the
    // outbound notification worker.  Each reconnects on its own.
    go func() {
        if err := queue.StartEnrollmentAuditConsumer(); err != nil {
            log.Printf("audit consumer: %v", err)
        }
    }()
    go func() {
        if err := queue.StartNotificationWorker(); err != nil {
            log.Printf("notification worker: %v", err)
        }
    }()

    // Periodic sweeps.  Each job reads the wall clock at run time so a
    // long tick never produces stale deadlines.
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    sched := scheduler.New(
        scheduler.Job{
            Name:     "expiry-sweep",
            Interval: sweepCfg.ExpiryInterval,
            Run: func(ctx context.Context) error {
                res, err := expiry.Run(ctx, time.Now().UTC())
                if err == nil && res.Expired > 0 {
                    log.Printf("expiry sweep: expired=%d notices=%d anomalies=%d",
                        res.Expired, res.NotificationsSent, res.Anomalies)
                }
                return err
            },
        },
        scheduler.Job{
            Name:     "reminder-sweep",
            Interval: sweepCfg.ReminderInterval,
            Run: func(ctx context.Context) error {
                res, err := reminders.Run(ctx, time.Now().UTC())
                if err == nil && res.Sent > 0 {
                    log.Printf("reminder sweep: sent=%d skipped=%d", res.Sent, res.Skipped)
                }
                return err
            },
        },
    )
    sched.Start(ctx)

    // Handlers.
    authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
    enrollHandler := handler.NewEnrollmentHandler(ledger, studentRepo)
    adminHandler := handler.NewAdminHandler(ledger, expiry, reminders)
    publicHandler := handler.NewPublicHandler(classRepo)
    webhookHandler := handler.NewPaymentWebhookHandler(ledger, cfg.WebhookSecret)

    e := echo.New() // Create Echo instance
    // The rate limiter covers every route; the response cache is
    // applied per-route inside RegisterPublic so authenticated
    // responses are never cached.
    var cacheMW []echo.MiddlewareFunc
    if rdb != nil {
        e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
        cacheMW = append(cacheMW, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
    }

    router.RegisterRoutes(e) // Register application routes
    router.RegisterAuth(e, authHandler, cfg.JWTSecret)
    router.RegisterPublic(e, publicHandler, cacheMW...)
    router.RegisterStudent(e, enrollHandler, cfg.JWTSecret)
    router.RegisterAdmin(e, adminHandler, cfg.JWTSecret)
    router.RegisterPaymentWebhook(e, webhookHandler)

    addr := ":" + cfg.Port                                // Address string with port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

    go func() {
        if err := e.Start(addr); err != nil { // Start HTTP server
            log.Printf("server stopped: %v", err)
            stop()
        }
    }()

    <-ctx.Done() // wait for SIGINT/SIGTERM or server failure

    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Printf("shutdown: %v", err)
    }
    sched.Wait() // let in-flight sweeps finish
}
