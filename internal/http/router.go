package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/archivebridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/archivebridge-backend/internal/http/middleware"
	"github.com/yungbote/archivebridge-backend/internal/pkg/logger"
)

type RouterConfig struct {
	ProcessHandler *httpH.ProcessHandler
	HealthHandler  *httpH.HealthHandler

	CORSAllowedOrigins []string
	Log                *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("archivebridge-processor"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSAllowedOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/ready", cfg.HealthHandler.Ready)
	}

	if cfg.ProcessHandler != nil {
		r.POST("/process", cfg.ProcessHandler.Submit)
		r.DELETE("/process", cfg.ProcessHandler.Abort)
		r.GET("/report", cfg.ProcessHandler.Report)
	}

	return r
}
