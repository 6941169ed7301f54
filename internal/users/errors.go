package users

import "errors"

var (
	ErrNotFound     = errors.New("users: user not found")
	ErrUnameTaken   = errors.New("users: user name is taken")
	ErrInvalidInput = errors.New("users: invalid input")
	ErrRootExists   = errors.New("users: root user already exists")
	ErrQueryFailed  = errors.New("users: query failed")

	ErrReminderInvalid = errors.New("users: reminder token is invalid or expired")
)
