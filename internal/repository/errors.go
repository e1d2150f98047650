package repository

import "errors"

var (
	ErrNoCipher = errors.New("token repository requires a cipher")
	ErrEmptyKey = errors.New("empty token key")
)
