package cache

import "breeze/internal/common"

var instance common.Cache

// Get returns the singleton cache instance; callers must have run one
// of the Init methods beforehand
func Get() common.Cache {
	return instance
}
