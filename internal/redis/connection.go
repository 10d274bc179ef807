// Package redis holds the redigo pool and dial helpers shared by the Redis
// broker.
package redis

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	jferrors "github.com/BranchIntl/jobforge/errors"
	"github.com/gomodule/redigo/redis"
)

var (
	// ErrInvalidScheme is returned when the Redis URI scheme is invalid
	ErrInvalidScheme = errors.New("invalid Redis database URI scheme")
	// ErrInvalidDatabase is returned when the URI path is not a database number
	ErrInvalidDatabase = errors.New("invalid Redis database number")
)

// ConnectionOptions defines the interface for Redis connection options
type ConnectionOptions interface {
	GetURI() string
	GetMaxConnections() int
	GetMaxIdle() int
	GetIdleTimeout() time.Duration
	GetConnectTimeout() time.Duration
	GetReadTimeout() time.Duration
	GetWriteTimeout() time.Duration
	GetUseTLS() bool
	GetTLSSkipVerify() bool
	GetTLSCertPath() string
}

// Endpoint is a parsed Redis URI
type Endpoint struct {
	Network  string
	Address  string
	Password string
	Database int
	TLS      bool
}

// ParseURI parses redis://, rediss:// and unix:// URIs
func ParseURI(raw string) (Endpoint, error) {
	uri, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid URI: %w", err)
	}

	var ep Endpoint
	switch uri.Scheme {
	case "redis", "rediss":
		ep.Network = "tcp"
		ep.Address = uri.Host
		ep.TLS = uri.Scheme == "rediss"
		if uri.User != nil {
			var ok bool
			if ep.Password, ok = uri.User.Password(); !ok {
				// redis://secret@host form
				ep.Password = uri.User.Username()
			}
		}
		if len(uri.Path) > 1 {
			db, err := strconv.Atoi(uri.Path[1:])
			if err != nil || db < 0 {
				return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidDatabase, uri.Path[1:])
			}
			ep.Database = db
		}
	case "unix":
		ep.Network = "unix"
		ep.Address = uri.Path
	default:
		return Endpoint{}, ErrInvalidScheme
	}
	return ep, nil
}

// Redact hides the password of a URI so it can be logged
func Redact(raw string) string {
	uri, err := url.Parse(raw)
	if err != nil || uri.User == nil {
		return raw
	}
	return uri.Redacted()
}

// CreatePool creates a Redis connection pool using the provided options
func CreatePool(options ConnectionOptions) (*redis.Pool, error) {
	if _, err := ParseURI(options.GetURI()); err != nil {
		return nil, jferrors.NewConnectionError(Redact(options.GetURI()), err)
	}

	return &redis.Pool{
		MaxActive:   options.GetMaxConnections(),
		MaxIdle:     options.GetMaxIdle(),
		IdleTimeout: options.GetIdleTimeout(),
		Wait:        true,
		Dial: func() (redis.Conn, error) {
			return DialRedis(options)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}, nil
}

// DialRedis establishes a Redis connection using the provided options
func DialRedis(options ConnectionOptions) (redis.Conn, error) {
	display := Redact(options.GetURI())

	ep, err := ParseURI(options.GetURI())
	if err != nil {
		return nil, jferrors.NewConnectionError(display, err)
	}

	dialOptions := []redis.DialOption{
		redis.DialConnectTimeout(options.GetConnectTimeout()),
		redis.DialReadTimeout(options.GetReadTimeout()),
		redis.DialWriteTimeout(options.GetWriteTimeout()),
		redis.DialDatabase(ep.Database),
	}
	if ep.Password != "" {
		dialOptions = append(dialOptions, redis.DialPassword(ep.Password))
	}

	if ep.Network == "tcp" && (ep.TLS || options.GetUseTLS()) {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: options.GetTLSSkipVerify(),
		}

		if options.GetTLSCertPath() != "" {
			pool, err := LoadCertPool(options.GetTLSCertPath())
			if err != nil {
				return nil, jferrors.NewConnectionError(display, err)
			}
			tlsConfig.RootCAs = pool
		}

		dialOptions = append(dialOptions,
			redis.DialUseTLS(true),
			redis.DialTLSConfig(tlsConfig),
		)
	}

	conn, err := redis.Dial(ep.Network, ep.Address, dialOptions...)
	if err != nil {
		return nil, jferrors.NewConnectionError(display,
			fmt.Errorf("failed to connect: %w", err))
	}

	return conn, nil
}

// LoadCertPool loads a certificate pool from a file
func LoadCertPool(certPath string) (*x509.CertPool, error) {
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}

	certs, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cert file %q: %w", certPath, err)
	}

	if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
		return nil, fmt.Errorf("failed to append certs from %q", certPath)
	}

	return rootCAs, nil
}
