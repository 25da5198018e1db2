package bootstrap

import (
	"database/sql"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/makerbridge/marketplace-backend/config"
	httpapi "github.com/makerbridge/marketplace-backend/internal/api/http"
	"github.com/makerbridge/marketplace-backend/internal/auth"
	msghttp "github.com/makerbridge/marketplace-backend/internal/messaging/http"
	msgrepo "github.com/makerbridge/marketplace-backend/internal/messaging/repository"
	msgservice "github.com/makerbridge/marketplace-backend/internal/messaging/service"
	notifhttp "github.com/makerbridge/marketplace-backend/internal/notifications/http"
	notifrepo "github.com/makerbridge/marketplace-backend/internal/notifications/repository"
	notifservice "github.com/makerbridge/marketplace-backend/internal/notifications/service"
	"github.com/makerbridge/marketplace-backend/internal/projects"
	projecthttp "github.com/makerbridge/marketplace-backend/internal/projects/http"
	"github.com/makerbridge/marketplace-backend/internal/realtime"
	"github.com/makerbridge/marketplace-backend/internal/routing"
	"github.com/makerbridge/marketplace-backend/internal/users"
)

type RouterDeps struct {
	Cfg        *config.Config
	DB         *pgxpool.Pool
	SQLDB      *sql.DB
	Redis      *redis.Client
	AuthClient *fbauth.Client
}

// Deps bundles the long-lived services the router and the job scheduler
// share.
type Deps struct {
	Router     *gin.Engine
	Broker     *realtime.Broker
	NotifRepo  *notifrepo.NotificationRepo
	RetryQueue *notifservice.RetryQueue
}

func BuildRouter(dep RouterDeps) *Deps {
	r := gin.Default()
	r.Use(cors.Default())

	healthHandler := httpapi.NewHealthHandler(dep.Cfg.App.ServiceName, dep.Cfg.App.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	userRepo := users.NewRepo(dep.DB)
	projectRepo := projects.NewRepo(dep.DB)
	routingRepo := routing.NewRepo(dep.DB)
	messageRepo := msgrepo.NewMessageRepo(dep.DB)
	notifRepo := notifrepo.NewNotificationRepo(dep.SQLDB)

	broker := realtime.NewBroker(dep.Redis)
	retryQueue := notifservice.NewRetryQueue(dep.Redis)
	fanout := notifservice.NewFanoutService(notifRepo, retryQueue, broker)

	resolver := msgservice.NewResolver(projectRepo, routingRepo)
	messageSvc := msgservice.NewMessageService(resolver, messageRepo, fanout, broker, projectRepo)

	api := r.Group("/api/v1")
	api.Use(auth.WithUser(userRepo, dep.AuthClient))

	projectsGroup := api.Group("/projects")
	projecthttp.NewHandler(projectRepo, routingRepo, fanout).Register(projectsGroup)

	streamHandler := msghttp.NewStreamHandler(messageSvc, notifRepo, broker, dep.Cfg.Realtime)
	msghttp.NewHandler(messageSvc, streamHandler).Register(projectsGroup)

	notifhttp.NewHandler(notifRepo).Register(api.Group("/notifications"))

	return &Deps{
		Router:     r,
		Broker:     broker,
		NotifRepo:  notifRepo,
		RetryQueue: retryQueue,
	}
}
