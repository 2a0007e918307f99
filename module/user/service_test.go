package user

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"chatty/service/storage"
	"chatty/tools/errs"
	"chatty/tools/security"
)

type fakeUserStore struct {
	byEmail map[string]*storage.User
	byID    map[primitive.ObjectID]*storage.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: map[string]*storage.User{},
		byID:    map[primitive.ObjectID]*storage.User{},
	}
}

func (f *fakeUserStore) Create(_ context.Context, email, fullName, passwordHash string) (*storage.User, error) {
	if _, exists := f.byEmail[email]; exists {
		return nil, storage.ErrDuplicateEmail
	}
	u := &storage.User{
		ID:        primitive.NewObjectID(),
		Email:     email,
		FullName:  fullName,
		Password:  passwordHash,
		CreatedAt: time.Now().UTC(),
	}
	f.byEmail[email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*storage.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*storage.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) UpdateProfilePic(_ context.Context, id primitive.ObjectID, url string) (*storage.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u.ProfilePic = url
	return u, nil
}

func newTestService() (*Service, *fakeUserStore, *fakeMedia, security.Options) {
	store := newFakeUserStore()
	media := &fakeMedia{url: "/api/media/pic"}
	opts := security.DefaultOptions([]byte("test-secret"))
	return NewService(store, media, opts), store, media, opts
}

type fakeMedia struct {
	calls int
	url   string
	err   error
}

func (f *fakeMedia) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func TestSignup(t *testing.T) {
	r := require.New(t)
	svc, store, _, opts := newTestService()

	u, token, err := svc.Signup(context.Background(), "  Alice Smith ", " Alice@Example.COM ", "hunter22")
	r.NoError(err)
	r.Equal("Alice Smith", u.FullName)
	r.Equal("alice@example.com", u.Email, "email is normalized")

	// stored hash verifies against the plaintext
	stored := store.byEmail["alice@example.com"]
	r.NoError(bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("hunter22")))

	// the issued token identifies the new account
	id, err := security.Verify(opts, token)
	r.NoError(err)
	r.Equal(u.ID.Hex(), id)
}

func TestSignupValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name                      string
		fullName, email, password string
	}{
		{"missing name", "", "a@b.com", "hunter22"},
		{"missing email", "Alice", "", "hunter22"},
		{"missing password", "Alice", "a@b.com", ""},
		{"bad email", "Alice", "not-an-email", "hunter22"},
		{"short password", "Alice", "a@b.com", "12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Signup(ctx, tc.fullName, tc.email, tc.password)
			require.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	r := require.New(t)
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "Alice", "alice@example.com", "hunter22")
	r.NoError(err)

	_, _, err = svc.Signup(ctx, "Other Alice", "alice@example.com", "different")
	r.ErrorIs(err, errs.ErrValidation)
	r.Contains(err.Error(), "email already exists")
}

func TestLogin(t *testing.T) {
	r := require.New(t)
	svc, _, _, opts := newTestService()
	ctx := context.Background()

	created, _, err := svc.Signup(ctx, "Alice", "alice@example.com", "hunter22")
	r.NoError(err)

	u, token, err := svc.Login(ctx, "ALICE@example.com", "hunter22")
	r.NoError(err)
	r.Equal(created.ID, u.ID)

	id, err := security.Verify(opts, token)
	r.NoError(err)
	r.Equal(created.ID.Hex(), id)
}

func TestLoginBadCredentials(t *testing.T) {
	r := require.New(t)
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "Alice", "alice@example.com", "hunter22")
	r.NoError(err)

	_, _, wrongPass := svc.Login(ctx, "alice@example.com", "wrong")
	_, _, noAccount := svc.Login(ctx, "nobody@example.com", "hunter22")

	r.Error(wrongPass)
	r.Error(noAccount)
	// a probe can't tell a bad password from a missing account
	r.Equal(wrongPass.Error(), noAccount.Error())
}

func TestCurrent(t *testing.T) {
	r := require.New(t)
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	created, _, err := svc.Signup(ctx, "Alice", "alice@example.com", "hunter22")
	r.NoError(err)

	u, err := svc.Current(ctx, created.ID)
	r.NoError(err)
	r.Equal(created.Email, u.Email)

	_, err = svc.Current(ctx, primitive.NewObjectID())
	r.ErrorIs(err, errs.ErrAuthentication)
}

func TestUpdateProfilePic(t *testing.T) {
	r := require.New(t)
	svc, store, media, _ := newTestService()
	ctx := context.Background()

	created, _, err := svc.Signup(ctx, "Alice", "alice@example.com", "hunter22")
	r.NoError(err)

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpegbytes"))
	u, err := svc.UpdateProfilePic(ctx, created.ID, dataURL)
	r.NoError(err)
	r.Equal("/api/media/pic", u.ProfilePic)
	r.Equal(1, media.calls)
	r.Equal("/api/media/pic", store.byID[created.ID].ProfilePic)
}

func TestUpdateProfilePicValidation(t *testing.T) {
	r := require.New(t)
	svc, _, media, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UpdateProfilePic(ctx, primitive.NewObjectID(), "")
	r.ErrorIs(err, errs.ErrValidation)

	_, err = svc.UpdateProfilePic(ctx, primitive.NewObjectID(), "data:image/png;base64,@@bad@@")
	r.ErrorIs(err, errs.ErrValidation)
	r.Zero(media.calls)
}

func TestUpdateProfilePicUploadFailure(t *testing.T) {
	r := require.New(t)
	svc, _, media, _ := newTestService()
	media.err = errors.New("bucket down")
	ctx := context.Background()

	created, _, err := svc.Signup(ctx, "Alice", "alice@example.com", "hunter22")
	r.NoError(err)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
	_, err = svc.UpdateProfilePic(ctx, created.ID, dataURL)
	r.ErrorIs(err, errs.ErrUpload)
}
