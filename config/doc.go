// Package config loads server settings from the environment.
package config
