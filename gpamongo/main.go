// Package gpamongo provides a MongoDB backed entity store for gpadmin resources
package gpamongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lemmego/gpadmin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultConnectTimeout bounds Connect when the context carries no deadline
const DefaultConnectTimeout = 10 * time.Second

// =====================================
// Connection
// =====================================

// Connect opens a client for config and returns its configured database.
// Pool sizes come from Options["mongo"].
func Connect(ctx context.Context, config gpadmin.Config) (*mongo.Database, error) {
	switch strings.ToLower(config.Driver) {
	case "mongodb", "mongo", "":
	default:
		return nil, gpadmin.NewError(gpadmin.ErrorTypeUnsupported, fmt.Sprintf("unsupported driver: %s", config.Driver))
	}
	if config.Database == "" {
		return nil, gpadmin.NewError(gpadmin.ErrorTypeConfiguration, "mongo database name is required")
	}

	clientOpts := options.Client().ApplyURI(buildConnectionURI(config))
	if mongoOpts, ok := config.Options["mongo"].(map[string]interface{}); ok {
		applyClientOptions(clientOpts, mongoOpts)
	}
	if config.MaxOpenConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(config.MaxOpenConns))
	}
	if config.ConnMaxIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(config.ConnMaxIdleTime)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "failed to connect to MongoDB", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "failed to ping MongoDB", err)
	}

	return client.Database(config.Database), nil
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"mongodb", "mongo"}
}

// buildConnectionURI builds a mongodb:// URI from config
func buildConnectionURI(config gpadmin.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 27017
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + config.Database,
	}
	if config.Username != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.Username, config.Password)
		} else {
			u.User = url.User(config.Username)
		}
	}

	if config.SSL.Enabled {
		q := url.Values{}
		q.Set("tls", "true")
		if config.SSL.CAFile != "" {
			q.Set("tlsCAFile", config.SSL.CAFile)
		}
		if config.SSL.CertFile != "" {
			q.Set("tlsCertificateKeyFile", config.SSL.CertFile)
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// applyClientOptions applies MongoDB specific client options
func applyClientOptions(clientOpts *options.ClientOptions, mongoOpts map[string]interface{}) {
	if maxPoolSize, ok := mongoOpts["max_pool_size"].(int); ok {
		clientOpts.SetMaxPoolSize(uint64(maxPoolSize))
	}
	if minPoolSize, ok := mongoOpts["min_pool_size"].(int); ok {
		clientOpts.SetMinPoolSize(uint64(minPoolSize))
	}
	if maxIdleTime, ok := mongoOpts["max_idle_time"].(time.Duration); ok {
		clientOpts.SetMaxConnIdleTime(maxIdleTime)
	}
	if appName, ok := mongoOpts["app_name"].(string); ok {
		clientOpts.SetAppName(appName)
	}
}
