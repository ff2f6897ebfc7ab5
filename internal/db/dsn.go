package db

import (
	"errors"
	"net/url"
	"strings"
)

var ErrEmptyDSN = errors.New("empty DSN")

// WithDBName returns dsn pointing at database instead of its current one.
// A DSN without a scheme is taken to be postgres.
func WithDBName(dsn, database string) (string, error) {
	if dsn == "" {
		return "", ErrEmptyDSN
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}

// Redact hides the password of a DSN for logging.
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
