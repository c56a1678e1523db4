package router

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"cvision/internal/api/handler"
	"cvision/internal/config"
)

const healthPath = "/api/v1/health"

var errInvalidAPIKey = errors.New("invalid API key")

// NewServer 创建带 OpenTelemetry 追踪的 Hertz 服务器，尚未开始监听
func NewServer(cfg config.ServerConfig) *server.Hertz {
	tracer, tracerCfg := hertztracing.NewServerTracer()

	maxBody := cfg.MaxBodyMB
	if maxBody <= 0 {
		maxBody = 20
	}
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Address),
		server.WithMaxRequestBodySize(maxBody<<20),
		server.WithHandleMethodNotAllowed(true),
		server.WithExitWaitTime(config.GetDuration(cfg.ShutdownTimeout, 5*time.Second)),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	return h
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, profileHandler *handler.ProfileHandler, serverCfg config.ServerConfig, authCfg config.AuthConfig) {
	h.Use(AccessLog(), RateLimit(serverCfg.RateLimitRPS, serverCfg.RateLimitBurst))

	api := h.Group("/api/v1")
	if mw := apiKeyAuth(authCfg); mw != nil {
		api.Use(mw)
	}

	api.POST("/profiles/extract", profileHandler.ExtractProfile)
	api.GET("/profiles/:filename", profileHandler.GetProfile)
	api.POST("/relationships/infer", profileHandler.InferRelationships)
	api.GET("/export.csv", profileHandler.Export)

	// 健康检查不需要鉴权
	api.GET("/health", profileHandler.Health)
}

// apiKeyAuth 未配置任何 key 时返回 nil
func apiKeyAuth(cfg config.AuthConfig) app.HandlerFunc {
	if len(cfg.APIKeys) == 0 {
		return nil
	}
	header := cfg.Header
	if header == "" {
		header = "X-API-Key"
	}
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys = append(keys, []byte(k))
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+header, ""),
		keyauth.WithFilter(func(c context.Context, ctx *app.RequestContext) bool {
			return strings.HasPrefix(string(ctx.Path()), healthPath)
		}),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			for _, k := range keys {
				if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": err.Error()})
		}),
	)
}
