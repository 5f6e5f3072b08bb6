package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"proposals/db"
	"proposals/db/migrations"
	"proposals/internal/handlers"
	"proposals/internal/service"
)

func main() {
	// .env опционален, в контейнерах конфигурация приходит из окружения
	_ = godotenv.Load()

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		log.Fatal("POSTGRES_CONN env variable is not set")
	}

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		log.Fatalf("Cannot connect to DB: %v", err)
	}
	defer dbConn.Close()

	migrations.Run()

	store := service.NewSQLStore(db.NewStorage(dbConn))
	proposalSvc := service.NewProposalService(store, log)
	orderSvc := service.NewOrderService(store, log)
	clientSvc := service.NewClientService(store, log)
	h := handlers.NewHandler(proposalSvc, orderSvc, clientSvc)

	writeLimit := handlers.NewRateLimiter(10, 20)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(handlers.ActorMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)
		r.Get("/idempotency-key", h.IdempotencyKeyHandler)

		r.Route("/v1", func(r chi.Router) {
			// создающие маршруты дополнительно защищены replay-кэшем
			create := r.With(writeLimit.Middleware)
			if addr := os.Getenv("REDIS_ADDR"); addr != "" {
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				cache := handlers.NewIdempotencyCache(handlers.NewRedisReplayStore(rdb))
				create = create.With(cache.Middleware)
			}

			// клиенты
			create.Post("/clients", h.CreateClientHandler)
			r.Get("/clients/{clientId}", h.GetClientHandler)

			// предложения
			create.Post("/proposals", h.CreateProposalHandler)
			r.Get("/proposals", h.GetProposalsHandler)
			r.Get("/proposals/{proposalId}", h.GetProposalHandler)
			r.With(writeLimit.Middleware).Patch("/proposals/{proposalId}", h.UpdateProposalHandler)
			r.With(writeLimit.Middleware).Delete("/proposals/{proposalId}", h.DeleteProposalHandler)
			r.With(writeLimit.Middleware).Post("/proposals/{proposalId}/submit", h.SubmitProposalHandler())
			r.With(writeLimit.Middleware).Post("/proposals/{proposalId}/approve", h.ApproveProposalHandler())
			r.With(writeLimit.Middleware).Post("/proposals/{proposalId}/reject", h.RejectProposalHandler())
			r.With(writeLimit.Middleware).Post("/proposals/{proposalId}/cancel", h.CancelProposalHandler())
			r.Get("/proposals/{proposalId}/audit", h.GetProposalAuditHandler)

			// заказы
			create.Post("/proposals/{proposalId}/orders", h.PlaceOrderHandler)
			r.Get("/orders", h.GetOrdersHandler)
			r.Get("/orders/{orderId}", h.GetOrderHandler)
			r.With(writeLimit.Middleware).Post("/orders/{orderId}/cancel", h.CancelOrderHandler)
		})
	})

	serverAddr := os.Getenv("SERVER_ADDRESS")
	if serverAddr == "" {
		serverAddr = "0.0.0.0:8080"
	}

	log.Infof("Starting server on %s", serverAddr)
	log.Fatal(http.ListenAndServe(serverAddr, r))
}
