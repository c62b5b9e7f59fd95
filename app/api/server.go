package api

import (
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lysyi3m/watchlist/app/metrics"
)

const requestIDHeader = "X-Request-ID"

type ServerOptions struct {
	AllowedOrigin  string
	TrustedProxies []string
	Debug          bool
}

var registerTagNames sync.Once

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, opts ServerOptions) (*gin.Engine, error) {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registerTagNames.Do(useJSONFieldNames)

	r := gin.New()

	r.RemoteIPHeaders = []string{"X-Forwarded-For", "X-Real-IP"}
	if len(opts.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
			return nil, fmt.Errorf("invalid trusted proxies: %w", err)
		}
	}

	r.Use(requestID())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\" %s\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
				param.Keys[requestIDHeader],
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))
	r.Use(gin.Recovery())
	r.Use(recordMetrics())
	r.Use(cors(opts.AllowedOrigin))

	setupRoutes(r, handler)

	return r, nil
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.POST("/add", handler.Add)
	r.POST("/search", handler.Search)
	r.POST("/totals", handler.Totals)

	list := r.Group("/watchlist")
	{
		list.GET("", handler.ListWatchlist)
		list.DELETE("", handler.DeleteItem)
		list.PATCH("/progress", handler.UpdateProgress)
		list.PATCH("/rating", handler.UpdateRating)
	}

	r.GET("/random", handler.Random)
	r.GET("/events", handler.Events)

	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/", handler.Index)

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})

	slog.Debug("Routes registered", "count", len(r.Routes()))
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func recordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func cors(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Retry-After, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// useJSONFieldNames makes validation errors report fields by their JSON name.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
