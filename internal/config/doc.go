// Package config provides YAML configuration loading and validation
// for the repeater daemon.
package config
