package handler

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"school-relay/internal/domain"
	"school-relay/internal/logging"
)

const (
	pathHealth  = "/"
	pathWebhook = "/webhook"

	correlationHeader = "X-Correlation-Id"
)

// MessageRouter consumes the messages of one webhook delivery.
type MessageRouter interface {
	Route(ctx context.Context, msgs []domain.InboundMessage)
}

type statusResponse struct {
	Status string `json:"status"`
}

// Handler serves the WhatsApp webhook behind API Gateway.
type Handler struct {
	router      MessageRouter
	verifyToken string
	logger      *slog.Logger
}

func NewHandler(router MessageRouter, verifyToken string, logger *slog.Logger) (*Handler, error) {
	if router == nil {
		return nil, errors.New("handler: router must not be nil")
	}
	if verifyToken == "" {
		return nil, errors.New("handler: verify token must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{router: router, verifyToken: verifyToken, logger: logger}, nil
}

// Handle routes GET /, GET /webhook and POST /webhook. It never returns an
// error; POST /webhook answers 200 whatever happened to the messages.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = logging.WithCorrelationID(ctx, correlationID)

	var resp events.APIGatewayProxyResponse
	switch path := normalizePath(req.Path); {
	case path == pathHealth && req.HTTPMethod == http.MethodGet:
		resp = jsonResponse(http.StatusOK, statusResponse{Status: "ok"})
	case path == pathWebhook && req.HTTPMethod == http.MethodGet:
		resp = h.verify(req)
	case path == pathWebhook && req.HTTPMethod == http.MethodPost:
		resp = h.receive(ctx, req)
	case path == pathWebhook || path == pathHealth:
		resp = jsonResponse(http.StatusMethodNotAllowed, statusResponse{Status: "method_not_allowed"})
	default:
		resp = jsonResponse(http.StatusNotFound, statusResponse{Status: "not_found"})
	}
	resp.Headers[correlationHeader] = correlationID
	return resp, nil
}

// verify answers the subscription handshake the provider performs when the
// webhook URL is registered.
func (h *Handler) verify(req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	q := req.QueryStringParameters
	if q["hub.mode"] == "subscribe" &&
		subtle.ConstantTimeCompare([]byte(q["hub.verify_token"]), []byte(h.verifyToken)) == 1 {
		return textResponse(http.StatusOK, q["hub.challenge"])
	}
	return textResponse(http.StatusForbidden, "Forbidden")
}

func (h *Handler) receive(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			h.logger.WarnContext(ctx, "webhook body is not valid base64", "err", err)
			decoded = nil
		}
		body = decoded
	}

	msgs := extractMessages(body)
	h.logger.DebugContext(ctx, "webhook delivery", "messages", len(msgs))
	if len(msgs) > 0 {
		h.router.Route(ctx, msgs)
	}
	return jsonResponse(http.StatusOK, statusResponse{Status: "ok"})
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return pathHealth
	}
	if p = strings.TrimRight(p, "/"); p == "" {
		return pathHealth
	}
	return p
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status, body = http.StatusInternalServerError, []byte(`{"status":"error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func textResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       body,
	}
}
