// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package config implements the configuration for the Rubix client SDK.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultLogLevel      = "NOTICE"
	defaultNodeURL       = "http://localhost:20000"
	defaultTimeout       = 300 // seconds
	defaultDataDirName   = ".rubix"
	defaultKeyPassphrase = "mypassword"
)

var defaultLogging = Logging{
	Disable: false,
	File:    "",
	Level:   defaultLogLevel,
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := strings.ToUpper(lCfg.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = lvl // Force uppercase.
	return nil
}

// Node is the remote node configuration.
type Node struct {
	// URL is the base URL of the Rubix node.
	URL string

	// Timeout is the request timeout in seconds.
	Timeout int

	// APIKey is an optional API key sent with every request.
	APIKey string
}

func (nCfg *Node) fixup() {
	if nCfg.URL == "" {
		nCfg.URL = defaultNodeURL
	}
	nCfg.URL = strings.TrimRight(nCfg.URL, "/")
	if nCfg.Timeout == 0 {
		nCfg.Timeout = defaultTimeout
	}
}

func (nCfg *Node) validate() error {
	if nCfg.Timeout < 0 {
		return fmt.Errorf("config: Node: Timeout '%v' is invalid", nCfg.Timeout)
	}
	return nil
}

// RequestTimeout returns the node request timeout as a time.Duration.
func (nCfg *Node) RequestTimeout() time.Duration {
	return time.Duration(nCfg.Timeout) * time.Second
}

// Config is the top level SDK configuration.
type Config struct {
	// DataDir is the directory keypairs and the transfer log live under.
	// If empty it defaults to ~/.rubix.
	DataDir string

	// KeyPassphrase encrypts private key files at rest.
	KeyPassphrase string

	Node    *Node
	Logging *Logging
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (c *Config) FixupAndValidate() error {
	if c.Logging == nil {
		c.Logging = &defaultLogging
	}
	if c.Node == nil {
		c.Node = new(Node)
	}
	c.Node.fixup()

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: DataDir not set and home directory unknown: %v", err)
		}
		c.DataDir = filepath.Join(home, defaultDataDirName)
	}
	if c.KeyPassphrase == "" {
		c.KeyPassphrase = defaultKeyPassphrase
	}

	if err := c.Logging.validate(); err != nil {
		return err
	}
	return c.Node.validate()
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// Default returns a Config populated entirely with defaults.
func Default() (*Config, error) {
	cfg := new(Config)
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
