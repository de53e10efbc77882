// Package config provides configuration management for the auth service.
package config
