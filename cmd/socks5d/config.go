package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quayside/socks5/auth"
)

// fileConfig is the YAML config file. Every field is optional; command-line
// flags override the file.
//
//	listen: 0.0.0.0:1080
//	upstream: socks5://exit.example.com:1080
//	debug_listen: 127.0.0.1:6060
//	max_connections: 1024
//	auth:
//	  required: true
//	  users:
//	    alice: secret
type fileConfig struct {
	Listen         string     `yaml:"listen"`
	Upstream       string     `yaml:"upstream"`
	DebugListen    string     `yaml:"debug_listen"`
	MaxConnections int        `yaml:"max_connections"`
	Auth           authConfig `yaml:"auth"`
}

type authConfig struct {
	// Required disallows unauthenticated clients when users are configured.
	Required bool `yaml:"required"`

	Users map[string]string `yaml:"users"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Auth.Required && len(cfg.Auth.Users) == 0 {
		return cfg, fmt.Errorf("%s: auth.required set but auth.users is empty", path)
	}
	return cfg, nil
}

// authenticators builds the server authenticator list: username/password when
// users are configured, plus no-auth unless required is set.
func (c fileConfig) authenticators() []auth.Authenticator {
	if len(c.Auth.Users) == 0 {
		return nil
	}

	auths := []auth.Authenticator{
		auth.UserPass{Credentials: auth.StaticCredentials(c.Auth.Users)},
	}
	if !c.Auth.Required {
		auths = append(auths, auth.NoAuth{})
	}
	return auths
}
