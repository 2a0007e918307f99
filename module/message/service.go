package message

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"chatty/logger"
	"chatty/service/storage"
	"chatty/tools/errs"
)

// MessageStore is the durable gateway the ingress depends on.
type MessageStore interface {
	SaveMessage(ctx context.Context, sender, recipient primitive.ObjectID, text, imageURL string) (*storage.Message, error)
	Conversation(ctx context.Context, a, b primitive.ObjectID) ([]*storage.Message, error)
}

// MediaStore uploads image bytes and returns a servable URL.
type MediaStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// DeliveryRouter pushes a persisted message to the recipient's live
// connections. Routing never returns an error to the sender.
type DeliveryRouter interface {
	Route(msg *storage.Message)
}

// UserLister feeds the sidebar roster.
type UserLister interface {
	ListOthers(ctx context.Context, exclude primitive.ObjectID) ([]*storage.User, error)
}

// Service is the message ingress: validate, upload, persist, route.
type Service struct {
	store         MessageStore
	media         MediaStore
	router        DeliveryRouter
	maxImageBytes int64
}

func NewService(store MessageStore, media MediaStore, router DeliveryRouter, maxImageBytes int64) *Service {
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	return &Service{store: store, media: media, router: router, maxImageBytes: maxImageBytes}
}

// Send runs the full ingress pipeline. Failures before persistence
// abort and surface to the sender; once the write lands, delivery
// problems stay out of the response.
func (s *Service) Send(ctx context.Context, senderID primitive.ObjectID, recipientHex, text, image string) (*storage.Message, error) {
	recipientID, err := primitive.ObjectIDFromHex(recipientHex)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid recipient id")
	}
	if text == "" && image == "" {
		return nil, errs.ErrValidation.WithDetail("message needs text or an image")
	}

	imageURL := ""
	if image != "" {
		data, contentType, derr := storage.DecodeDataURL(image)
		if derr != nil {
			return nil, errs.ErrValidation.WithDetail("image payload is not valid base64").WithCause(derr)
		}
		if int64(len(data)) > s.maxImageBytes {
			return nil, errs.ErrValidation.WithDetail("image too large")
		}
		imageURL, err = s.media.Upload(ctx, data, contentType)
		if err != nil {
			return nil, errs.ErrUpload.WithCause(err)
		}
	}

	msg, err := s.store.SaveMessage(ctx, senderID, recipientID, text, imageURL)
	if err != nil {
		return nil, errs.ErrPersistence.WithCause(err)
	}

	// durable write wins: router failures are logged inside Route and
	// never reach the sender
	s.router.Route(msg)

	logger.Debug("message sent",
		zap.String("sender", senderID.Hex()), zap.String("recipient", recipientHex))
	return msg, nil
}

// History returns the conversation between the caller and the given
// counterpart, oldest first.
func (s *Service) History(ctx context.Context, me primitive.ObjectID, otherHex string) ([]*storage.Message, error) {
	other, err := primitive.ObjectIDFromHex(otherHex)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}
	msgs, err := s.store.Conversation(ctx, me, other)
	if err != nil {
		return nil, errs.ErrPersistence.WithCause(err)
	}
	return msgs, nil
}
