package domain

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrNoDestination = errors.New("no destination configured")
	ErrClientClosed  = errors.New("client closed")
)
