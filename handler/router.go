package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const maxLocalBodyBytes = 1 << 20

// NewRouter exposes the handler over plain HTTP for local development. Every
// request path is passed to Handle so routing stays identical to the Lambda.
// An empty origin list allows all origins.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", headerCorrelationID},
		ExposeHeaders: []string{headerCorrelationID},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Unix()})
	})
	router.NoRoute(h.serveHTTP)
	return router
}

func (h *Handler) serveHTTP(c *gin.Context) {
	req, err := toFunctionURLRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody, Error: "INVALID_INPUT"})
		return
	}

	resp, err := h.Handle(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("handler returned error", "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error", Error: "INTERNAL_ERROR"})
		return
	}
	if closer, ok := resp.Body.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.Status(resp.StatusCode)
	if resp.Body == nil {
		return
	}

	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if errors.Is(rerr, io.EOF) {
			return
		}
		if rerr != nil {
			// Headers are already sent; the client sees a truncated body.
			h.logger.Warn("response stream aborted", "err", rerr)
			return
		}
	}
}

func toFunctionURLRequest(r *http.Request) (events.LambdaFunctionURLRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLocalBodyBytes))
	if err != nil {
		return events.LambdaFunctionURLRequest{}, err
	}
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ",")
	}
	return events.LambdaFunctionURLRequest{
		RawPath:        r.URL.Path,
		RawQueryString: r.URL.RawQuery,
		Headers:        headers,
		Body:           string(body),
		RequestContext: events.LambdaFunctionURLRequestContext{
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{
				Method:    r.Method,
				Path:      r.URL.Path,
				SourceIP:  r.RemoteAddr,
				UserAgent: r.UserAgent(),
			},
		},
	}, nil
}
