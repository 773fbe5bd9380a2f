package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"mystery-message/internal/domain"
	"mystery-message/internal/usecase"
)

const (
	PathSendMessage     = "/api/send-message"
	PathSuggestMessages = "/api/suggest-messages"

	headerCorrelationID = "X-Correlation-Id"

	msgSent            = "Message sent successfully"
	msgSendFailed      = "Error sending message"
	msgSuggestFailed   = "Error generating suggestions"
	msgInvalidBody     = "Invalid request body"
	msgNotFound        = "User not found"
	msgNotAccepting    = "User is not accepting messages"
	msgRateLimited     = "Too many requests, please try again later"
	msgUpstream        = "Upstream service unavailable"
	msgFlagged         = "Message content is not allowed"
	msgUsernameMissing = "Username is required"
	msgPromptTooLong   = "Prompt is too long"
)

type Sender interface {
	Send(ctx context.Context, in usecase.SendInput) (usecase.SendOutput, error)
}

type Suggester interface {
	Suggest(ctx context.Context, in usecase.SuggestInput, onDelta func(string) error) error
}

// Handler serves the send and suggestion endpoints behind a Lambda Function
// URL with response streaming enabled.
type Handler struct {
	sender    Sender
	suggester Suggester
	logger    *slog.Logger
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func NewHandler(sender Sender, suggester Suggester, logger *slog.Logger) (*Handler, error) {
	if sender == nil {
		return nil, errors.New("handler: sender must not be nil")
	}
	if suggester == nil {
		return nil, errors.New("handler: suggester must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sender: sender, suggester: suggester, logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.LambdaFunctionURLRequest) (*events.LambdaFunctionURLStreamingResponse, error) {
	correlationID := headerValue(req.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.logger.With("correlation_id", correlationID)

	path := strings.TrimRight(requestPath(req), "/")
	method := strings.ToUpper(req.RequestContext.HTTP.Method)

	switch path {
	case PathSendMessage, PathSuggestMessages:
	default:
		return jsonResponse(http.StatusNotFound, correlationID, errorResponse{Message: "Not found", Error: string(usecase.ErrorNotFound)}), nil
	}
	if method != http.MethodPost {
		resp := jsonResponse(http.StatusMethodNotAllowed, correlationID, errorResponse{Message: "Method not allowed", Error: string(usecase.ErrorInvalidInput)})
		resp.Headers["Allow"] = http.MethodPost
		return resp, nil
	}

	body, err := requestBody(req)
	if err != nil {
		log.Warn("request body could not be decoded", "err", err)
		return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Message: msgInvalidBody, Error: string(usecase.ErrorInvalidInput)}), nil
	}

	if path == PathSendMessage {
		return h.handleSend(ctx, log, correlationID, body), nil
	}
	return h.handleSuggest(ctx, log, correlationID, body), nil
}

func (h *Handler) handleSend(ctx context.Context, log *slog.Logger, correlationID string, body []byte) *events.LambdaFunctionURLStreamingResponse {
	var in domain.SendMessageRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Message: msgInvalidBody, Error: string(usecase.ErrorInvalidInput)})
	}

	out, err := h.sender.Send(ctx, usecase.SendInput{Username: in.Username, Content: in.Content})
	if err != nil {
		status, resp := errorFor(err, msgSendFailed)
		logFailure(log, "send message failed", status, err)
		return jsonResponse(status, correlationID, resp)
	}

	log.Info("message sent", "message_id", out.MessageID)
	return jsonResponse(http.StatusCreated, correlationID, domain.APIResponse{Success: true, Message: msgSent})
}

// handleSuggest starts the stream in the background and waits for either the
// first delta or a failure, so an upstream error can still become a JSON
// error response with a meaningful status.
func (h *Handler) handleSuggest(ctx context.Context, log *slog.Logger, correlationID string, body []byte) *events.LambdaFunctionURLStreamingResponse {
	var in domain.SuggestRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &in); err != nil {
			return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Message: msgInvalidBody, Error: string(usecase.ErrorInvalidInput)})
		}
	}

	pr, pw := io.Pipe()
	started := make(chan error, 1)
	go func() {
		sent := false
		err := h.suggester.Suggest(ctx, usecase.SuggestInput{Prompt: in.Prompt}, func(delta string) error {
			if !sent {
				sent = true
				started <- nil
			}
			_, werr := io.WriteString(pw, delta)
			return werr
		})
		if !sent {
			started <- err
			_ = pw.Close()
			return
		}
		if err != nil {
			log.Error("suggestion stream interrupted", "err", err)
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.Close()
	}()

	var err error
	select {
	case err = <-started:
	case <-ctx.Done():
		err = ctx.Err()
		_ = pr.CloseWithError(err)
	}
	if err != nil {
		status, resp := errorFor(err, msgSuggestFailed)
		logFailure(log, "suggestion request failed", status, err)
		return jsonResponse(status, correlationID, resp)
	}

	return &events.LambdaFunctionURLStreamingResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":           "text/plain; charset=utf-8",
			"Cache-Control":          "no-cache",
			"X-Content-Type-Options": "nosniff",
			headerCorrelationID:      correlationID,
		},
		Body: pr,
	}
}

// errorFor maps a usecase failure to a status code and response body.
// fallback is the user-facing text for internal errors.
func errorFor(err error, fallback string) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Message: fallback, Error: string(usecase.ErrorInternal)}
	}

	resp := errorResponse{Error: string(ucErr.Code)}
	var status int
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
		resp.Message = invalidInputMessage(ucErr)
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
		resp.Message = msgNotFound
	case usecase.ErrorForbidden:
		status = http.StatusForbidden
		resp.Message = msgNotAccepting
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
		resp.Message = msgRateLimited
	case usecase.ErrorUpstream:
		status = http.StatusBadGateway
		resp.Message = msgUpstream
	default:
		status = http.StatusInternalServerError
		resp.Message = fallback
		resp.Error = string(usecase.ErrorInternal)
	}
	return status, resp
}

func invalidInputMessage(ucErr *usecase.Error) string {
	var ve *domain.ValidationError
	if errors.As(ucErr, &ve) {
		return ve.Message
	}
	switch ucErr.Reason {
	case "content_flagged":
		return msgFlagged
	case "username_required":
		return msgUsernameMissing
	case "prompt_too_long":
		return msgPromptTooLong
	}
	return msgInvalidBody
}

func logFailure(log *slog.Logger, msg string, status int, err error) {
	attrs := []any{"status", status, "err", err}
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		attrs = append(attrs, "code", ucErr.Code, "reason", ucErr.Reason)
	}
	if status >= http.StatusInternalServerError {
		log.Error(msg, attrs...)
		return
	}
	log.Warn(msg, attrs...)
}

func jsonResponse(status int, correlationID string, v any) *events.LambdaFunctionURLStreamingResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"success":false,"message":"Internal server error","error":"INTERNAL_ERROR"}`)
	}
	return &events.LambdaFunctionURLStreamingResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: correlationID,
		},
		Body: strings.NewReader(string(b)),
	}
}

func requestPath(req events.LambdaFunctionURLRequest) string {
	if req.RawPath != "" {
		return req.RawPath
	}
	return req.RequestContext.HTTP.Path
}

func requestBody(req events.LambdaFunctionURLRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

// headerValue looks a header up case-insensitively; Function URLs lower-case
// header names but local callers may not.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
