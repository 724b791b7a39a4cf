package middleware

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// redactedParams never reach the logs. id_token is a bearer credential and
// nonce links a log line to an ephemeral key.
var redactedParams = map[string]struct{}{
	"id_token":     {},
	"access_token": {},
	"nonce":        {},
	"code":         {},
	"state":        {},
}

// Logger middleware logs each HTTP request with structured fields.
//
// NOTE: 요청 본문은 로그하지 않는다 (JWT, tx 바이트 포함).
// 쿼리는 redactQuery 를 거친 값만 기록한다.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.RawQuery)

		// Process request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}

		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case statusCode >= 500:
			logger.Error("server error", fields...)
		case statusCode >= 400:
			logger.Warn("client error", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	for key := range values {
		if _, ok := redactedParams[key]; ok {
			values.Set(key, "[redacted]")
		}
	}
	return values.Encode()
}
