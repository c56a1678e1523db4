package router

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"cvision/internal/tracing"
)

// AccessLog 记录请求方法、路径、状态码与耗时
func AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		status := ctx.Response.StatusCode()
		hlog.CtxInfof(c, "%s %s -> %d (%s)", ctx.Method(), ctx.Path(), status, time.Since(start))
		if status >= consts.StatusInternalServerError {
			if last := ctx.Errors.Last(); last != nil {
				tracing.RecordHTTPError(trace.SpanFromContext(c), last.Err, status)
			}
		}
	}
}

// RateLimit 进程级令牌桶限流，rps <= 0 时不限流
func RateLimit(rps float64, burst int) app.HandlerFunc {
	if rps <= 0 {
		return func(c context.Context, ctx *app.RequestContext) { ctx.Next(c) }
	}
	if burst <= 0 {
		burst = int(rps) + 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c context.Context, ctx *app.RequestContext) {
		if !limiter.Allow() {
			ctx.Header("Retry-After", "1")
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": "请求过于频繁"})
			return
		}
		ctx.Next(c)
	}
}
