package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/avicenna-clinic/booking-platform/internal/config"
	"github.com/avicenna-clinic/booking-platform/internal/database"
	"github.com/avicenna-clinic/booking-platform/internal/handler"
	"github.com/avicenna-clinic/booking-platform/internal/middleware"
	"github.com/avicenna-clinic/booking-platform/internal/queue"
	"github.com/avicenna-clinic/booking-platform/internal/repository"
	"github.com/avicenna-clinic/booking-platform/internal/router"
	"github.com/avicenna-clinic/booking-platform/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	professionalRepo := repository.NewProfessionalRepo(db)
	appointmentRepo := repository.NewAppointmentRepo(db)
	holdRepo := repository.NewSlotHoldRepo(db)

	holds := service.NewSlotHoldManager(holdRepo, nil)

	// Eager sweep: lazy expiry in the manager keeps correctness, the
	// ticker keeps the table from accumulating dead rows.
	go func() {
		t := time.NewTicker(cfg.SweepInterval)
		defer t.Stop()
		for range t.C {
			if n := holds.CleanupExpiredHolds(context.Background()); n > 0 {
				log.Printf("slot-hold: sweep removed %d expired holds", n)
			}
		}
	}()

	// Background consumer for confirmed-appointment events.  Runs a
	// reconnect loop of its own; a broker outage never stops the API.
	go func() {
		if err := queue.StartAppointmentConsumer(); err != nil {
			log.Printf("appointment-consumer: stopped: %v", err)
		}
	}()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo, tokenRepo), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(professionalRepo, appointmentRepo, holds))
	router.RegisterHolds(e, handler.NewHoldHandler(professionalRepo, holds), limiter)
	router.RegisterBooking(e, handler.NewBookingHandler(professionalRepo, appointmentRepo, holds), cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
