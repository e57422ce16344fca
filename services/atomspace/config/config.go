// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the atomspace service.
//
// Configuration is YAML. An embedded default is always loaded first and a
// user file, if given, is decoded on top of it, so a file only needs the
// fields it changes. The result is validated with go-playground/validator.
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use. A loaded Config
//	is a plain value and must not be mutated concurrently.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize is the maximum allowed config file size (1MB).
const MaxConfigFileSize = 1024 * 1024

// ErrInvalidConfig is returned when a config file fails to parse or validate.
var ErrInvalidConfig = errors.New("invalid config")

//go:embed default.yaml
var defaultConfigYAML []byte

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the atomspace service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Types   TypesConfig   `yaml:"types"`
	Store   StoreConfig   `yaml:"store"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP introspection API.
type ServerConfig struct {
	Address string `yaml:"address" validate:"required,ip|hostname"`
	Port    int    `yaml:"port" validate:"min=1,max=65535"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// TypesConfig configures extra type definitions.
type TypesConfig struct {
	// File is a YAML type-definition file loaded at startup. Optional.
	File string `yaml:"file" validate:"required_if=Watch true"`

	// Watch reloads File when it changes. Requires File.
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period before a reload.
	WatchDebounce time.Duration `yaml:"watch_debounce" validate:"gte=0"`
}

// StoreConfig configures the atom store.
type StoreConfig struct {
	// SweepWorkers bounds parallel slot sweeps. Zero means GOMAXPROCS.
	SweepWorkers int `yaml:"sweep_workers" validate:"gte=0,lte=1024"`
}

// MetricsConfig toggles Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// Default returns the embedded default configuration.
//
// Panics if the embedded default is invalid, which is a build defect.
func Default() Config {
	var cfg Config
	if err := decode(defaultConfigYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default is invalid: %v", err))
	}
	return cfg
}

// Load reads the configuration.
//
// Description:
//
//	Starts from Default() and decodes path on top of it. An empty path
//	returns the defaults. The merged result is validated.
//
// Inputs:
//
//	path - Config file path, or "" for defaults only.
//
// Outputs:
//
//	Config - The validated configuration.
//	error - Read errors, or ErrInvalidConfig for size, parse and
//	        validation failures.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return Config{}, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrInvalidConfig, path, info.Size(), MaxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// decode strictly decodes data onto cfg and validates the result.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg.Validate()
}
