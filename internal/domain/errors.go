package domain

import "errors"

var (
	ErrClipNotFound    = errors.New("clip not found")
	ErrClipExpired     = errors.New("clip has expired")
	ErrInvalidCode     = errors.New("invalid short code format")
	ErrEmptyContent    = errors.New("clip content is empty")
	ErrInvalidPassword = errors.New("invalid password")
	ErrShortCodeExists = errors.New("short code already exists")
)
