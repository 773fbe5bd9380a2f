package usecase

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"mystery-message/internal/domain"
	"mystery-message/internal/repository"
	"mystery-message/internal/telemetry"
)

type MessageStore interface {
	GetRecipient(ctx context.Context, username string) (domain.Recipient, error)
	SaveMessage(ctx context.Context, msg domain.Message) error
}

type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

// SendService delivers anonymous messages to recipients that accept them.
type SendService struct {
	store     MessageStore
	moderator Moderator
	limits    domain.ContentLimits
}

type SendInput struct {
	Username string
	Content  string
}

type SendOutput struct {
	MessageID string
	CreatedAt string
}

// NewSendService creates a SendService. moderator may be nil, in which case
// content is stored without a moderation check.
func NewSendService(store MessageStore, moderator Moderator, limits domain.ContentLimits) (*SendService, error) {
	if store == nil {
		return nil, errors.New("usecase: message store must not be nil")
	}
	return &SendService{store: store, moderator: moderator, limits: limits}, nil
}

func (s *SendService) Send(ctx context.Context, in SendInput) (out SendOutput, err error) {
	ctx, span := telemetry.StartSpan(ctx, "usecase.Send", attribute.String("recipient", in.Username))
	defer func() { telemetry.EndSpan(span, err) }()

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return SendOutput{}, newError(ErrorInvalidInput, "username_required", nil)
	}
	if err := s.limits.Validate(in.Content); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return SendOutput{}, newError(ErrorInvalidInput, ve.Reason, err)
		}
		return SendOutput{}, newError(ErrorInvalidInput, "content_invalid", err)
	}

	recipient, err := s.store.GetRecipient(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrRecipientNotFound) {
			return SendOutput{}, newError(ErrorNotFound, "recipient_not_found", err)
		}
		return SendOutput{}, newError(ErrorInternal, "dynamodb_read_error", err)
	}
	if !recipient.AcceptingMessages {
		return SendOutput{}, newError(ErrorForbidden, "recipient_not_accepting", nil)
	}

	if s.moderator != nil {
		flagged, err := s.moderator.Moderate(ctx, in.Content)
		if err != nil {
			return SendOutput{}, upstreamError("moderation", err)
		}
		if flagged {
			return SendOutput{}, newError(ErrorInvalidInput, "content_flagged", nil)
		}
	}

	msg := repository.NewMessage(username, in.Content)
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotAcceptingMessages) {
			return SendOutput{}, newError(ErrorForbidden, "recipient_not_accepting", err)
		}
		return SendOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}

	return SendOutput{MessageID: msg.ID, CreatedAt: msg.CreatedAt}, nil
}
