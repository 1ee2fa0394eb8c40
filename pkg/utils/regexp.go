package utils

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RegexpCache keeps the most recently compiled patterns.
type RegexpCache struct {
	cache *lru.Cache[string, *regexp.Regexp]
}

func NewRegexpCache(size int) (*RegexpCache, error) {
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, err
	}
	return &RegexpCache{cache: cache}, nil
}

func (r *RegexpCache) Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := r.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.cache.Add(pattern, re)
	return re, nil
}

func (r *RegexpCache) Len() int {
	return r.cache.Len()
}
