package gql

import (
	"context"
	"errors"
	"time"

	"mongograph/core"
	"mongograph/storage"

	"github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
)

// healthTimeout bounds the ping behind the database field
const healthTimeout = 2 * time.Second

// errInternal hides unexpected store failures from clients
var errInternal = errors.New("internal server error")

// UserStore is the persistence the resolvers need
type UserStore interface {
	ListUsers(ctx context.Context, limit, offset int) ([]core.User, error)
	GetUser(ctx context.Context, id string) (*core.User, error)
	CreateUser(ctx context.Context, user *core.User) error
	UpdateUser(ctx context.Context, id string, update core.UserUpdate) (*core.User, error)
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (int64, error)
}

// Pinger reports database liveness
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Resolver is the root resolver for Query and Mutation
type Resolver struct {
	users  UserStore
	db     Pinger
	dbHost string
	logger *zap.SugaredLogger
}

// NewResolver creates the root resolver
func NewResolver(users UserStore, db Pinger, dbHost string, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{users: users, db: db, dbHost: dbHost, logger: logger}
}

type usersArgs struct {
	Limit  *int32
	Offset *int32
}

// Users resolves Query.users
func (r *Resolver) Users(ctx context.Context, args usersArgs) ([]*UserResolver, error) {
	limit, offset := 0, 0
	if args.Limit != nil {
		limit = int(*args.Limit)
	}
	if args.Offset != nil {
		offset = int(*args.Offset)
	}

	users, err := r.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, r.publicError("users", err)
	}

	resolvers := make([]*UserResolver, len(users))
	for i := range users {
		resolvers[i] = &UserResolver{user: users[i]}
	}
	return resolvers, nil
}

// User resolves Query.user; unknown ids resolve to null
func (r *Resolver) User(ctx context.Context, args struct{ ID graphql.ID }) (*UserResolver, error) {
	user, err := r.users.GetUser(ctx, string(args.ID))
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, r.publicError("user", err)
	}
	return &UserResolver{user: *user}, nil
}

// UserCount resolves Query.userCount
func (r *Resolver) UserCount(ctx context.Context) (int32, error) {
	count, err := r.users.CountUsers(ctx)
	if err != nil {
		return 0, r.publicError("userCount", err)
	}
	return int32(count), nil
}

// Database resolves Query.database
func (r *Resolver) Database(ctx context.Context) *DatabaseStatusResolver {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	connected := r.db.HealthCheck(ctx) == nil
	return &DatabaseStatusResolver{connected: connected, host: r.dbHost}
}

type newUserInput struct {
	Name  string
	Email string
}

// CreateUser resolves Mutation.createUser
func (r *Resolver) CreateUser(ctx context.Context, args struct{ Input newUserInput }) (*UserResolver, error) {
	user := &core.User{Name: args.Input.Name, Email: args.Input.Email}
	if err := r.users.CreateUser(ctx, user); err != nil {
		return nil, r.publicError("createUser", err)
	}
	r.logger.Infow("User created", "id", user.ID.Hex())
	return &UserResolver{user: *user}, nil
}

type userChangesInput struct {
	Name  *string
	Email *string
}

type updateUserArgs struct {
	ID    graphql.ID
	Input userChangesInput
}

// UpdateUser resolves Mutation.updateUser
func (r *Resolver) UpdateUser(ctx context.Context, args updateUserArgs) (*UserResolver, error) {
	update := core.UserUpdate{Name: args.Input.Name, Email: args.Input.Email}
	user, err := r.users.UpdateUser(ctx, string(args.ID), update)
	if err != nil {
		return nil, r.publicError("updateUser", err)
	}
	return &UserResolver{user: *user}, nil
}

// DeleteUser resolves Mutation.deleteUser
func (r *Resolver) DeleteUser(ctx context.Context, args struct{ ID graphql.ID }) (bool, error) {
	if err := r.users.DeleteUser(ctx, string(args.ID)); err != nil {
		return false, r.publicError("deleteUser", err)
	}
	r.logger.Infow("User deleted", "id", string(args.ID))
	return true, nil
}

// publicError passes client-caused errors through and masks everything else
func (r *Resolver) publicError(op string, err error) error {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrDuplicateEmail),
		errors.Is(err, storage.ErrInvalidID):
		return err
	}
	r.logger.Errorw("GraphQL operation failed", "operation", op, "error", err)
	return errInternal
}

// UserResolver resolves the User type
type UserResolver struct {
	user core.User
}

func (u *UserResolver) ID() graphql.ID {
	return graphql.ID(u.user.ID.Hex())
}

func (u *UserResolver) Name() string {
	return u.user.Name
}

func (u *UserResolver) Email() string {
	return u.user.Email
}

func (u *UserResolver) CreatedAt() graphql.Time {
	return graphql.Time{Time: u.user.CreatedAt}
}

func (u *UserResolver) UpdatedAt() graphql.Time {
	return graphql.Time{Time: u.user.UpdatedAt}
}

// DatabaseStatusResolver resolves the DatabaseStatus type
type DatabaseStatusResolver struct {
	connected bool
	host      string
}

func (d *DatabaseStatusResolver) Connected() bool {
	return d.connected
}

func (d *DatabaseStatusResolver) Host() string {
	return d.host
}
