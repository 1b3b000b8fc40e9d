// Package apigw serves an http.Handler from API Gateway proxy events so the
// same routes can run on AWS Lambda.
package apigw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// Handler turns API Gateway proxy requests into calls on an http.Handler.
type Handler struct {
	adapter *httpadapter.HandlerAdapter
	logger  *slog.Logger
}

// NewHandler creates a new gateway handler.
func NewHandler(next http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		adapter: httpadapter.New(next),
		logger:  logger,
	}
}

// HandleRequest serves one proxy event.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleRequest(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp, err := h.adapter.ProxyWithContext(ctx, event)
	if err != nil {
		// The adapter only fails when the event cannot be turned into a
		// request (e.g. a body flagged base64 that does not decode).
		h.logger.Warn("rejecting malformed proxy event",
			"requestID", event.RequestContext.RequestID,
			"path", event.Path,
			"error", err,
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
			Body:       "malformed request",
		}, nil
	}

	// The adapter fills only the multi-value form; REST API integrations
	// without multi-value headers enabled read Headers.
	if len(resp.Headers) == 0 && len(resp.MultiValueHeaders) > 0 {
		resp.Headers = make(map[string]string, len(resp.MultiValueHeaders))
		for k, vs := range resp.MultiValueHeaders {
			resp.Headers[k] = strings.Join(vs, ",")
		}
	}

	h.logger.Debug("proxy request handled",
		"requestID", event.RequestContext.RequestID,
		"method", event.HTTPMethod,
		"path", event.Path,
		"status", resp.StatusCode,
	)
	return resp, nil
}
