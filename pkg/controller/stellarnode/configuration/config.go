// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package configuration

import (
	"github.com/elastic/go-ucfg"
	uyaml "github.com/elastic/go-ucfg/yaml"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// CanonicalConfig holds a node configuration file ("horizon.yml",
// "soroban-rpc.yml") as a hierarchical key-value configuration.
type CanonicalConfig ucfg.Config

var options = []ucfg.Option{ucfg.PathSep(".")}

// NewCanonicalConfig creates a new empty config.
func NewCanonicalConfig() *CanonicalConfig {
	return fromConfig(ucfg.New())
}

// NewCanonicalConfigFrom creates a new config from the given map.
func NewCanonicalConfigFrom(cfg map[string]interface{}) (*CanonicalConfig, error) {
	config, err := ucfg.NewFrom(cfg, options...)
	if err != nil {
		return nil, err
	}
	return fromConfig(config), nil
}

// MustCanonicalConfig creates a new config and panics on errors.
// Use for testing only.
func MustCanonicalConfig(cfg interface{}) *CanonicalConfig {
	config, err := ucfg.NewFrom(cfg, options...)
	if err != nil {
		panic(err)
	}
	return fromConfig(config)
}

// ParseConfig parses the given configuration content into a CanonicalConfig.
// Expects content to be in YAML format.
func ParseConfig(yml []byte) (*CanonicalConfig, error) {
	config, err := uyaml.NewConfig(yml, options...)
	if err != nil {
		return nil, err
	}
	return fromConfig(config), nil
}

// Set sets key to string vals in c. An error is returned if key is invalid.
func (c *CanonicalConfig) Set(key string, vals ...string) error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch len(vals) {
	case 0:
		return errors.New("nothing to set")
	case 1:
		return c.access().SetString(key, -1, vals[0], options...)
	default:
		for i, v := range vals {
			if err := c.access().SetString(key, i, v, options...); err != nil {
				return err
			}
		}
	}
	return nil
}

// MergeWith merges the content of c and c2.
// In case of conflict, c2 is taking precedence.
func (c *CanonicalConfig) MergeWith(cfgs ...*CanonicalConfig) error {
	for _, c2 := range cfgs {
		if c2 == nil {
			continue
		}
		if err := c.access().Merge(c2.access(), options...); err != nil {
			return err
		}
	}
	return nil
}

// Render returns the content of the configuration file,
// with fields sorted alphabetically.
func (c *CanonicalConfig) Render() ([]byte, error) {
	if c == nil {
		return []byte{}, nil
	}
	var out map[string]interface{}
	if err := c.access().Unpack(&out); err != nil {
		return []byte{}, err
	}
	return yaml.Marshal(out)
}

func (c *CanonicalConfig) access() *ucfg.Config {
	return (*ucfg.Config)(c)
}

func fromConfig(in *ucfg.Config) *CanonicalConfig {
	return (*CanonicalConfig)(in)
}
