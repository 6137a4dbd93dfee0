package router

import (
	"github.com/cuongbtq/onprem-bridge/internal/api/handler"
	"github.com/cuongbtq/onprem-bridge/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options holds the route-level settings that are not handler dependencies
type Options struct {
	AgentToken string
	Verifier   auth.Verifier
	Gatherer   prometheus.Gatherer
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/healthz", healthHandler.Live)
	r.GET("/readyz", healthHandler.Ready)

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	bridgeHandler := handler.NewBridgeHandler(deps)
	bridge := r.Group("/bridge", AgentTokenMiddleware(opts.AgentToken, deps.Auditor, deps.Logger))
	{
		// POST /bridge/jobs/pull - Hand the oldest queued job to the agent
		bridge.POST("/jobs/pull", bridgeHandler.PullJob)

		// POST /bridge/jobs/:jobId/result - Accept a signed job result
		bridge.POST("/jobs/:jobId/result", bridgeHandler.PostResult)

		// GET /bridge/jobs - Page through job summaries
		bridge.GET("/jobs", bridgeHandler.ListJobs)

		// GET /bridge/stats - Backlog summary
		bridge.GET("/stats", bridgeHandler.Stats)
	}

	requestHandler := handler.NewRequestHandler(deps)
	v1 := r.Group("/api/v1", CallerAuthMiddleware(opts.Verifier, deps.Logger))
	{
		requests := v1.Group("/requests")
		{
			// POST /api/v1/requests - Queue an on-prem data request
			requests.POST("", requestHandler.CreateRequest)

			// GET /api/v1/requests/:requestId - Read request status and result
			requests.GET("/:requestId", requestHandler.GetRequest)
		}
	}

	return r
}
