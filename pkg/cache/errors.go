package cache

import "errors"

var errInvalidSize = errors.New("cache: size must be positive")
