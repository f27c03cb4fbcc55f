package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"mongograph/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// mockUserCollection implements UserCollection with overridable funcs
type mockUserCollection struct {
	find             func(filter interface{}, opts ...*options.FindOptions) (UserCursor, error)
	findOne          func(filter interface{}) UserSingleResult
	findOneAndUpdate func(filter, update interface{}) UserSingleResult
	insertOne        func(document interface{}) (*mongo.InsertOneResult, error)
	deleteOne        func(filter interface{}) (*mongo.DeleteResult, error)
	countDocuments   func(filter interface{}) (int64, error)
	createIndexes    func(models []mongo.IndexModel) error
}

func (m *mockUserCollection) Find(_ context.Context, filter interface{}, opts ...*options.FindOptions) (UserCursor, error) {
	return m.find(filter, opts...)
}

func (m *mockUserCollection) FindOne(_ context.Context, filter interface{}, _ ...*options.FindOneOptions) UserSingleResult {
	return m.findOne(filter)
}

func (m *mockUserCollection) FindOneAndUpdate(_ context.Context, filter interface{}, update interface{}, _ ...*options.FindOneAndUpdateOptions) UserSingleResult {
	return m.findOneAndUpdate(filter, update)
}

func (m *mockUserCollection) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	return m.insertOne(document)
}

func (m *mockUserCollection) DeleteOne(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	return m.deleteOne(filter)
}

func (m *mockUserCollection) CountDocuments(_ context.Context, filter interface{}, _ ...*options.CountOptions) (int64, error) {
	return m.countDocuments(filter)
}

func (m *mockUserCollection) CreateIndexes(_ context.Context, models []mongo.IndexModel) error {
	return m.createIndexes(models)
}

// sliceCursor iterates over in-memory users
type sliceCursor struct {
	users  []core.User
	pos    int
	err    error
	closed bool
}

func (c *sliceCursor) Next(context.Context) bool {
	if c.pos >= len(c.users) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Decode(v interface{}) error {
	*(v.(*core.User)) = c.users[c.pos-1]
	return nil
}

func (c *sliceCursor) Err() error { return c.err }

func (c *sliceCursor) Close(context.Context) error {
	c.closed = true
	return nil
}

type singleResult struct {
	user *core.User
	err  error
}

func (r singleResult) Decode(v interface{}) error {
	if r.err != nil {
		return r.err
	}
	*(v.(*core.User)) = *r.user
	return nil
}

func newMockStore(coll *mockUserCollection) *UserStorage {
	return newUserStorage(coll, time.Second, zap.NewNop().Sugar())
}

func TestUserStorage_ListUsersClampsLimit(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int64
		wantOffset int64
	}{
		{"default limit", 0, 0, DefaultUserLimit, 0},
		{"capped limit", 1000, 5, MaxUserLimit, 5},
		{"negative offset", 10, -3, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor := &sliceCursor{users: []core.User{{Name: "a"}, {Name: "b"}}}
			coll := &mockUserCollection{
				find: func(filter interface{}, opts ...*options.FindOptions) (UserCursor, error) {
					require.Len(t, opts, 1)
					assert.Equal(t, tt.wantLimit, *opts[0].Limit)
					assert.Equal(t, tt.wantOffset, *opts[0].Skip)
					return cursor, nil
				},
			}

			users, err := newMockStore(coll).ListUsers(context.Background(), tt.limit, tt.offset)

			require.NoError(t, err)
			assert.Len(t, users, 2)
			assert.True(t, cursor.closed)
		})
	}
}

func TestUserStorage_ListUsersErrors(t *testing.T) {
	t.Run("find error", func(t *testing.T) {
		coll := &mockUserCollection{
			find: func(interface{}, ...*options.FindOptions) (UserCursor, error) {
				return nil, errors.New("network")
			},
		}
		_, err := newMockStore(coll).ListUsers(context.Background(), 10, 0)
		assert.ErrorContains(t, err, "failed to find users")
	})

	t.Run("cursor error", func(t *testing.T) {
		coll := &mockUserCollection{
			find: func(interface{}, ...*options.FindOptions) (UserCursor, error) {
				return &sliceCursor{err: errors.New("killed")}, nil
			},
		}
		_, err := newMockStore(coll).ListUsers(context.Background(), 10, 0)
		assert.ErrorContains(t, err, "cursor error")
	})
}

func TestUserStorage_GetUser(t *testing.T) {
	oid := primitive.NewObjectID()
	stored := &core.User{ID: oid, Name: "Ada", Email: "ada@example.com"}

	coll := &mockUserCollection{
		findOne: func(filter interface{}) UserSingleResult {
			if filter.(bson.M)["_id"] == oid {
				return singleResult{user: stored}
			}
			return singleResult{err: mongo.ErrNoDocuments}
		},
	}
	store := newMockStore(coll)

	user, err := store.GetUser(context.Background(), oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)

	_, err = store.GetUser(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.GetUser(context.Background(), "not-hex")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestUserStorage_CreateUser(t *testing.T) {
	var inserted *core.User
	coll := &mockUserCollection{
		insertOne: func(document interface{}) (*mongo.InsertOneResult, error) {
			inserted = document.(*core.User)
			return &mongo.InsertOneResult{InsertedID: inserted.ID}, nil
		},
	}

	user := &core.User{Name: " Ada ", Email: "ADA@example.com"}
	require.NoError(t, newMockStore(coll).CreateUser(context.Background(), user))

	require.NotNil(t, inserted)
	assert.False(t, user.ID.IsZero())
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.Name)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}

func TestUserStorage_CreateUserRejectsInvalid(t *testing.T) {
	coll := &mockUserCollection{
		insertOne: func(interface{}) (*mongo.InsertOneResult, error) {
			t.Fatal("insert must not be called for invalid input")
			return nil, nil
		},
	}

	err := newMockStore(coll).CreateUser(context.Background(), &core.User{Name: "Ada", Email: "nope"})

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
}

func TestUserStorage_CreateUserDuplicateEmail(t *testing.T) {
	coll := &mockUserCollection{
		insertOne: func(interface{}) (*mongo.InsertOneResult, error) {
			return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
		},
	}

	err := newMockStore(coll).CreateUser(context.Background(), &core.User{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserStorage_UpdateUser(t *testing.T) {
	oid := primitive.NewObjectID()
	name := "Grace"

	coll := &mockUserCollection{
		findOneAndUpdate: func(filter, update interface{}) UserSingleResult {
			set := update.(bson.M)["$set"].(bson.M)
			assert.Equal(t, "Grace", set["name"])
			assert.NotContains(t, set, "email")
			assert.Contains(t, set, "updated_at")
			return singleResult{user: &core.User{ID: oid, Name: "Grace", Email: "g@example.com"}}
		},
	}

	user, err := newMockStore(coll).UpdateUser(context.Background(), oid.Hex(), core.UserUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Grace", user.Name)
}

func TestUserStorage_UpdateUserErrors(t *testing.T) {
	name := "Grace"
	tests := []struct {
		name    string
		id      string
		update  core.UserUpdate
		result  error
		wantErr error
	}{
		{"invalid id", "zzz", core.UserUpdate{Name: &name}, nil, ErrInvalidID},
		{"not found", primitive.NewObjectID().Hex(), core.UserUpdate{Name: &name}, mongo.ErrNoDocuments, ErrUserNotFound},
		{"duplicate", primitive.NewObjectID().Hex(), core.UserUpdate{Name: &name},
			mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, ErrDuplicateEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coll := &mockUserCollection{
				findOneAndUpdate: func(interface{}, interface{}) UserSingleResult {
					return singleResult{err: tt.result}
				},
			}
			_, err := newMockStore(coll).UpdateUser(context.Background(), tt.id, tt.update)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUserStorage_DeleteUser(t *testing.T) {
	deleted := int64(1)
	coll := &mockUserCollection{
		deleteOne: func(interface{}) (*mongo.DeleteResult, error) {
			return &mongo.DeleteResult{DeletedCount: deleted}, nil
		},
	}
	store := newMockStore(coll)

	assert.NoError(t, store.DeleteUser(context.Background(), primitive.NewObjectID().Hex()))

	deleted = 0
	assert.ErrorIs(t, store.DeleteUser(context.Background(), primitive.NewObjectID().Hex()), ErrUserNotFound)
	assert.ErrorIs(t, store.DeleteUser(context.Background(), "bad"), ErrInvalidID)
}

func TestUserStorage_CountUsers(t *testing.T) {
	coll := &mockUserCollection{
		countDocuments: func(interface{}) (int64, error) { return 42, nil },
	}
	count, err := newMockStore(coll).CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestUserStorage_EnsureIndexes(t *testing.T) {
	var got []mongo.IndexModel
	coll := &mockUserCollection{
		createIndexes: func(models []mongo.IndexModel) error {
			got = models
			return nil
		},
	}

	require.NoError(t, newMockStore(coll).EnsureIndexes(context.Background()))
	require.Len(t, got, 2)
	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, got[0].Keys)
	assert.True(t, *got[0].Options.Unique)
}
