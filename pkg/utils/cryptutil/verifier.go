// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package cryptutil

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"
)

// TokenVerifier checks a shared secret token against a stored bcrypt hash.
type TokenVerifier interface {
	Verify(token []byte) bool
}

// NewTokenVerifier returns a bcrypt-backed token verifier for the given hash.
// If size is greater than 0 successful verifications are cached in an LRU cache of
// the provided size so the bcrypt cost is not paid on every request.
func NewTokenVerifier(hash []byte, size int) (TokenVerifier, error) {
	if size > 0 {
		lruCache, err := lru.New[string, struct{}](size)
		if err != nil {
			return nil, err
		}
		return &lruTokenCache{
			hash:                   hash,
			compareHashAndPassword: bcrypt.CompareHashAndPassword,
			verified:               lruCache,
		}, nil
	}
	return &tokenVerifier{hash: hash}, nil
}

type compareHashAndPassword func(hashedPassword, password []byte) error

type lruTokenCache struct {
	hash     []byte
	verified *lru.Cache[string, struct{}]

	// only to be changed for unit tests
	compareHashAndPassword
}

func (v *lruTokenCache) Verify(token []byte) bool {
	key := string(token)

	if _, hit := v.verified.Get(key); hit {
		return true
	}

	if v.compareHashAndPassword(v.hash, token) != nil {
		return false
	}
	v.verified.Add(key, struct{}{})
	return true
}

type tokenVerifier struct {
	hash []byte
}

func (v *tokenVerifier) Verify(token []byte) bool {
	return bcrypt.CompareHashAndPassword(v.hash, token) == nil
}
