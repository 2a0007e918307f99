package user

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"chatty/service/storage"
	"chatty/tools/errs"
	"chatty/tools/security"
)

const minPasswordLen = 6

// UserStore is the account persistence the service depends on.
type UserStore interface {
	Create(ctx context.Context, email, fullName, passwordHash string) (*storage.User, error)
	FindByEmail(ctx context.Context, email string) (*storage.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*storage.User, error)
	UpdateProfilePic(ctx context.Context, id primitive.ObjectID, url string) (*storage.User, error)
}

// MediaStore uploads profile pictures.
type MediaStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

var errInvalidCredentials = errs.New(http.StatusBadRequest, "invalid credentials")

// Service implements signup/login/profile on top of the user store.
type Service struct {
	users UserStore
	media MediaStore
	jwt   security.Options
}

func NewService(users UserStore, media MediaStore, jwt security.Options) *Service {
	return &Service{users: users, media: media, jwt: jwt}
}

// Signup creates an account and returns it with a fresh token.
func (s *Service) Signup(ctx context.Context, fullName, email, password string) (*storage.User, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" || email == "" || password == "" {
		return nil, "", errs.ErrValidation.WithDetail("all fields are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", errs.ErrValidation.WithDetail("invalid email address")
	}
	if len(password) < minPasswordLen {
		return nil, "", errs.ErrValidation.WithDetail("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", errors.Wrap(err, "hash password")
	}

	u, err := s.users.Create(ctx, email, fullName, string(hash))
	if errors.Is(err, storage.ErrDuplicateEmail) {
		return nil, "", errs.ErrValidation.WithDetail("email already exists")
	}
	if err != nil {
		return nil, "", errs.ErrPersistence.WithCause(err)
	}

	token, _, err := security.Generate(s.jwt, u.ID.Hex())
	if err != nil {
		return nil, "", errors.Wrap(err, "sign token")
	}
	return u, token, nil
}

// Login verifies credentials and returns the account with a token. The
// same error covers a missing account and a bad password.
func (s *Service) Login(ctx context.Context, email, password string) (*storage.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, "", errInvalidCredentials
	}
	if err != nil {
		return nil, "", errs.ErrPersistence.WithCause(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, "", errInvalidCredentials
	}

	token, _, err := security.Generate(s.jwt, u.ID.Hex())
	if err != nil {
		return nil, "", errors.Wrap(err, "sign token")
	}
	return u, token, nil
}

// Current loads the authenticated account.
func (s *Service) Current(ctx context.Context, id primitive.ObjectID) (*storage.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, errs.ErrAuthentication
	}
	if err != nil {
		return nil, errs.ErrPersistence.WithCause(err)
	}
	return u, nil
}

// UpdateProfilePic uploads the picture and stores its URL.
func (s *Service) UpdateProfilePic(ctx context.Context, id primitive.ObjectID, dataURL string) (*storage.User, error) {
	if dataURL == "" {
		return nil, errs.ErrValidation.WithDetail("profile picture is required")
	}
	data, contentType, err := storage.DecodeDataURL(dataURL)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("picture payload is not valid base64").WithCause(err)
	}
	url, err := s.media.Upload(ctx, data, contentType)
	if err != nil {
		return nil, errs.ErrUpload.WithCause(err)
	}
	u, err := s.users.UpdateProfilePic(ctx, id, url)
	if err != nil {
		return nil, errs.ErrPersistence.WithCause(err)
	}
	return u, nil
}
