package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mongograph/metrics"
	"mongograph/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// DefaultConnectTimeout bounds a connection attempt when ConnectOptions.Timeout is unset
const DefaultConnectTimeout = 10 * time.Second

// disconnectTimeout bounds the cleanup of a client whose ping failed
const disconnectTimeout = 2 * time.Second

// ConnState is the lifecycle state of a Bootstrapper
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Client is the subset of *mongo.Client the connection lifecycle depends on
type Client interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Database(name string, opts ...*options.DatabaseOptions) *mongo.Database
	Disconnect(ctx context.Context) error
}

// ConnectFunc opens a client. The default is mongo.Connect.
type ConnectFunc func(ctx context.Context, opts *options.ClientOptions) (Client, error)

func driverConnect(ctx context.Context, opts *options.ClientOptions) (Client, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ConnectOptions configures a single connection attempt
type ConnectOptions struct {
	URI         string
	Database    string
	Timeout     time.Duration
	MaxPoolSize uint64
	AppName     string
}

// MongoDB is an established connection handle. It is created once at startup and
// passed to every component that reads or writes the database.
type MongoDB struct {
	Client   Client
	Database *mongo.Database
	// Host is the server identifier reported on connect
	Host string
	// Target is the redacted connection target
	Target string
}

// HealthCheck performs a health check on the MongoDB connection
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// Bootstrapper establishes the process's MongoDB connection exactly once.
//
// Connect makes a single attempt bounded by the configured timeout. It never
// retries; later calls return the outcome of the first one. Deciding whether a
// failure is fatal is left to the caller.
type Bootstrapper struct {
	opts    ConnectOptions
	logger  *zap.SugaredLogger
	connect ConnectFunc

	once  sync.Once
	state atomic.Int32
	db    *MongoDB
	err   error
}

// NewBootstrapper creates a bootstrapper in the Disconnected state
func NewBootstrapper(opts ConnectOptions, logger *zap.SugaredLogger) *Bootstrapper {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bootstrapper{
		opts:    opts,
		logger:  logger,
		connect: driverConnect,
	}
}

// NewMongoDB connects with a fresh bootstrapper and returns the handle
func NewMongoDB(ctx context.Context, opts ConnectOptions, logger *zap.SugaredLogger) (*MongoDB, error) {
	return NewBootstrapper(opts, logger).Connect(ctx)
}

// State returns the current lifecycle state
func (b *Bootstrapper) State() ConnState {
	return ConnState(b.state.Load())
}

// Connect blocks until the connection attempt succeeds, fails, or times out.
// Errors are always *ConnectError.
func (b *Bootstrapper) Connect(ctx context.Context) (*MongoDB, error) {
	b.once.Do(func() {
		b.db, b.err = b.attempt(ctx)
	})
	return b.db, b.err
}

func (b *Bootstrapper) attempt(ctx context.Context) (*MongoDB, error) {
	b.state.Store(int32(StateConnecting))

	target := RedactURI(b.opts.URI)
	b.logger.Infow("Connecting to MongoDB",
		"target", target,
		"database", b.opts.Database,
		"timeout", b.opts.Timeout)

	start := time.Now()
	db, err := b.dial(ctx, target)
	metrics.MongoConnectDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		b.state.Store(int32(StateFailed))
		result := "failure"
		if errors.Is(err, ErrConnectTimeout) {
			result = "timeout"
		}
		metrics.MongoConnectAttempts.WithLabelValues(result).Inc()
		b.logger.Errorw("MongoDB connection failed",
			"target", target,
			"result", result,
			"error", util.SanitizeError(err))
		return nil, err
	}

	b.state.Store(int32(StateConnected))
	metrics.MongoConnectAttempts.WithLabelValues("success").Inc()
	b.logger.Infow("MongoDB connected",
		"host", db.Host,
		"database", b.opts.Database,
		"duration", time.Since(start))
	return db, nil
}

func (b *Bootstrapper) dial(parent context.Context, target string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(parent, b.opts.Timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(b.opts.URI).
		SetServerSelectionTimeout(b.opts.Timeout)
	if b.opts.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(b.opts.MaxPoolSize)
	}
	if b.opts.AppName != "" {
		clientOptions.SetAppName(b.opts.AppName)
	}

	client, err := b.connect(ctx, clientOptions)
	if err != nil {
		return nil, newConnectError(ctx, target, "connect", err)
	}

	// mongo.Connect does no I/O; the ping is the actual round trip
	if err := client.Ping(ctx, nil); err != nil {
		connErr := newConnectError(ctx, target, "ping", err)
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer dcancel()
		if derr := client.Disconnect(dctx); derr != nil {
			b.logger.Debugw("Disconnect after failed ping", "error", util.SanitizeError(derr))
		}
		return nil, connErr
	}

	return &MongoDB{
		Client:   client,
		Database: client.Database(b.opts.Database),
		Host:     resolveHost(ctx, client, b.opts.URI),
		Target:   target,
	}, nil
}

// resolveHost asks the server who it is via the hello command and falls back to
// the first seed host in the URI.
func resolveHost(ctx context.Context, client Client, uri string) string {
	if mc, ok := client.(*mongo.Client); ok {
		var hello struct {
			Me string `bson:"me"`
		}
		err := mc.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
		if err == nil && hello.Me != "" {
			return hello.Me
		}
	}
	return SeedHost(uri)
}

// SeedHost returns the first host listed in a connection string, or "unknown"
func SeedHost(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.Split(u.Host, ",")[0]
}

// RedactURI reduces a connection string to scheme, hosts and database.
// Credentials and query options are dropped.
func RedactURI(uri string) string {
	if strings.TrimSpace(uri) == "" {
		return "(empty)"
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "(unparseable)"
	}
	redacted := u.Scheme + "://" + u.Host
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		redacted += "/" + db
	}
	return redacted
}
