package models

import "errors"

var (
	ErrNotFound     = errors.New("chat not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("completion service error")
)
