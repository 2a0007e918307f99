package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User is an account record. Password holds the bcrypt hash and is never
// serialized to clients.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email      string             `bson:"email" json:"email"`
	FullName   string             `bson:"full_name" json:"fullName"`
	Password   string             `bson:"password" json:"-"`
	ProfilePic string             `bson:"profile_pic" json:"profilePic"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updatedAt"`
}

var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned by Create when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(c *Client) *UserStore {
	return &UserStore{coll: c.DB().Collection(usersCollection)}
}

func (s *UserStore) Create(ctx context.Context, email, fullName, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		Email:     email,
		FullName:  fullName,
		Password:  passwordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := s.coll.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, errors.Wrap(err, "insert user")
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return u, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user by email")
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var u User
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user by id")
	}
	return &u, nil
}

// ListOthers returns every user except the given one, for the sidebar
// roster. Password hashes are excluded at the query level.
func (s *UserStore) ListOthers(ctx context.Context, exclude primitive.ObjectID) ([]*User, error) {
	opts := options.Find().
		SetProjection(bson.M{"password": 0}).
		SetSort(bson.M{"full_name": 1})

	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": exclude}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer cursor.Close(ctx)

	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return users, nil
}

func (s *UserStore) UpdateProfilePic(ctx context.Context, id primitive.ObjectID, url string) (*User, error) {
	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)

	var u User
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"profile_pic": url, "updated_at": time.Now().UTC()}},
		opts,
	).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "update profile pic")
	}
	return &u, nil
}
