package router

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yieldtree/incentive-engine/internal/config"
	handlershared "github.com/yieldtree/incentive-engine/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	operatorHeader  = handlershared.OperatorHeader
	maxHeaderToken  = 64
)

// 只接受可安全写入日志与审计字段的标识
var headerTokenPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]+$`)

// CORSMiddleware 跨域中间件，管理台从其他域名调用时使用
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Content-Type", "Accept-Encoding", requestIDHeader, operatorHeader}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")
	exposeHeader := strings.Join([]string{requestIDHeader, "Retry-After"}, ", ")

	return func(c *gin.Context) {
		header := c.Writer.Header()
		origin := c.GetHeader("Origin")
		if allowed := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials); allowed != "" {
			header.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				header.Add("Vary", "Origin")
			}
			if cfg.AllowCredentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		header.Set("Access-Control-Allow-Headers", headersHeader)
		header.Set("Access-Control-Allow-Methods", methodsHeader)
		header.Set("Access-Control-Expose-Headers", exposeHeader)
		if cfg.MaxAge > 0 {
			header.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// resolveAllowedOrigin 支持 "*"、完整域名与 "*.example.com" 子域通配
func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	for _, allowed := range allowedOrigins {
		if allowed != "*" {
			continue
		}
		if allowCredentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	host := origin
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	for _, allowed := range allowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if strings.EqualFold(allowed, origin) {
			return origin
		}
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok && strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(suffix)) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 透传或生成请求 ID，非法的上游 ID 会被替换
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := sanitizeHeaderToken(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// OperatorMiddleware 记录操作人，供审计字段与日志使用
func OperatorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if operator := sanitizeHeaderToken(c.GetHeader(operatorHeader)); operator != "" {
			c.Set(handlershared.OperatorKey, operator)
		}
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		log := sugar.With(
			"request_id", getRequestID(c),
			"operator", c.GetString(handlershared.OperatorKey),
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		switch {
		case len(c.Errors) > 0:
			log.Errorw("request", "errors", c.Errors.String())
		case status >= 500:
			log.Warnw("request")
		default:
			log.Infow("request")
		}
	}
}

func sanitizeHeaderToken(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" || len(value) > maxHeaderToken || !headerTokenPattern.MatchString(value) {
		return ""
	}
	return value
}

func getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
