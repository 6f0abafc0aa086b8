package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/fluidpay/internal/requestvalidator"
	"github.com/vultisig/fluidpay/internal/tasks"
	"github.com/vultisig/fluidpay/service"
	"github.com/vultisig/fluidpay/storage"
)

// TaskEnqueuer is the part of *asynq.Client the server uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	cfg         ServerConfig
	settlements service.Settlement
	claims      storage.Claimer
	client      TaskEnqueuer
	inspector   tasks.TaskInspector
	sdClient    statsd.ClientInterface
	logger      *logrus.Entry
	now         func() time.Time
}

// NewServer returns a new server.
func NewServer(
	cfg ServerConfig,
	settlements service.Settlement,
	claims storage.Claimer,
	client TaskEnqueuer,
	inspector tasks.TaskInspector,
	sdClient statsd.ClientInterface,
	logger *logrus.Logger,
) *Server {
	if sdClient == nil {
		sdClient = &statsd.NoOpClient{}
	}
	return &Server{
		cfg:         cfg,
		settlements: settlements,
		claims:      claims,
		client:      client,
		inspector:   inspector,
		sdClient:    sdClient,
		logger:      logger.WithField("service", "api"),
		now:         time.Now,
	}
}

// Router builds the echo instance with every route registered.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.DEBUG)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M")) // set maximum allowed size for a request body to 2M
	e.Use(s.statsdMiddleware)
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 5, Burst: 30, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))

	e.Validator = requestvalidator.New()

	e.GET("/ping", s.Ping)

	moduleGroup := e.Group("/module")
	moduleGroup.GET("", s.GetModule)
	moduleGroup.GET("/tokens/:address", s.GetTokenAccepted)
	moduleGroup.GET("/events", s.ListConfigEvents)

	settlementGroup := e.Group("/settlements")
	settlementGroup.POST("", s.CreateSettlement, s.signatureMiddleware)
	settlementGroup.GET("", s.ListSettlements)
	settlementGroup.GET("/:id", s.GetSettlement)

	adminGroup := e.Group("/admin", s.signatureMiddleware)
	adminGroup.POST("/owner", s.SetOwner)
	adminGroup.POST("/upkeep", s.SetUpkeep)
	adminGroup.POST("/tokens", s.AddToken)
	adminGroup.POST("/tokens/remove", s.RemoveToken)
	adminGroup.POST("/fee", s.SetFee)
	adminGroup.POST("/slippage", s.SetSlippage)
	adminGroup.POST("/threshold", s.SetSweepThreshold)

	upkeepGroup := e.Group("/upkeep")
	upkeepGroup.POST("/sweep", s.EnqueueSweep, s.signatureMiddleware)
	upkeepGroup.GET("/sweep/:taskId", s.GetSweepResult)

	return e
}

func (s *Server) StartServer() error {
	e := s.Router()
	return e.Start(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "FluidPay settlement server is running")
}
