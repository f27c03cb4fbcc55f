package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mongograph/core"
	"mongograph/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	// UsersCollection is the collection holding core.User documents
	UsersCollection = "users"
	// DefaultUserLimit is used when ListUsers is called with a non-positive limit
	DefaultUserLimit = 20
	// MaxUserLimit caps a single ListUsers page
	MaxUserLimit = 100
	// DefaultQueryTimeout bounds a single user store operation
	DefaultQueryTimeout = 5 * time.Second
)

// UserCursor interface for mocking
type UserCursor interface {
	Next(ctx context.Context) bool
	Decode(v interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// UserSingleResult interface for mocking
type UserSingleResult interface {
	Decode(v interface{}) error
}

// UserCollection interface for mocking
type UserCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (UserCursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) UserSingleResult
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) UserSingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	CreateIndexes(ctx context.Context, models []mongo.IndexModel) error
}

// mongoUserCollection adapts *mongo.Collection to UserCollection
type mongoUserCollection struct {
	*mongo.Collection
}

func (m *mongoUserCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (UserCursor, error) {
	cursor, err := m.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (m *mongoUserCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) UserSingleResult {
	return m.Collection.FindOne(ctx, filter, opts...)
}

func (m *mongoUserCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) UserSingleResult {
	return m.Collection.FindOneAndUpdate(ctx, filter, update, opts...)
}

func (m *mongoUserCollection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) error {
	_, err := m.Collection.Indexes().CreateMany(ctx, models)
	return err
}

// UserStorage persists users in MongoDB
type UserStorage struct {
	coll    UserCollection
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewUserStorage creates a user store on the handle's database
func NewUserStorage(db *MongoDB, timeout time.Duration, logger *zap.SugaredLogger) *UserStorage {
	return newUserStorage(&mongoUserCollection{Collection: db.Database.Collection(UsersCollection)}, timeout, logger)
}

func newUserStorage(coll UserCollection, timeout time.Duration, logger *zap.SugaredLogger) *UserStorage {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &UserStorage{coll: coll, timeout: timeout, logger: logger}
}

// EnsureIndexes creates the unique email index and the listing index
func (s *UserStorage) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
	}
	if err := s.coll.CreateIndexes(ctx, models); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// ListUsers returns users newest first. limit is clamped to [1, MaxUserLimit].
func (s *UserStorage) ListUsers(ctx context.Context, limit, offset int) ([]core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if limit <= 0 {
		limit = DefaultUserLimit
	}
	if limit > MaxUserLimit {
		limit = MaxUserLimit
	}
	if offset < 0 {
		offset = 0
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := s.coll.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		metrics.UserStoreErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]core.User, 0, limit)
	for cursor.Next(ctx) {
		var user core.User
		if err := cursor.Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		users = append(users, user)
	}
	if err := cursor.Err(); err != nil {
		metrics.UserStoreErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return users, nil
}

// GetUser returns the user with the given hex id
func (s *UserStorage) GetUser(ctx context.Context, id string) (*core.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user core.User
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		metrics.UserStoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateUser validates and inserts the user, filling in its id and timestamps
func (s *UserStorage) CreateUser(ctx context.Context, user *core.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := storedNow()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		metrics.UserStoreErrors.WithLabelValues("create").Inc()
		return fmt.Errorf("failed to insert user: %w", err)
	}

	s.logger.Debugw("User created", "id", user.ID.Hex())
	return nil
}

// UpdateUser applies a partial update and returns the updated user
func (s *UserStorage) UpdateUser(ctx context.Context, id string, update core.UserUpdate) (*core.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	set := bson.M{"updated_at": storedNow()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user core.User
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&user); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, ErrDuplicateEmail
		}
		metrics.UserStoreErrors.WithLabelValues("update").Inc()
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// DeleteUser removes the user with the given id
func (s *UserStorage) DeleteUser(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		metrics.UserStoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrUserNotFound
	}

	s.logger.Debugw("User deleted", "id", id)
	return nil
}

// CountUsers returns the total number of users
func (s *UserStorage) CountUsers(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		metrics.UserStoreErrors.WithLabelValues("count").Inc()
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// storedNow truncates to the millisecond precision BSON dates keep
func storedNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
