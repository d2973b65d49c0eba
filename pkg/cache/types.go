package cache

import "errors"

var ErrCacheTooCostly = errors.New("item too costly for cache")
