// Package config provides centralized configuration management for the
// resource agent daemon. It loads a YAML document describing the reasoning
// provider, gateway connection, memory backend, and runtime parameters, and
// applies defaults for anything the operator leaves unset.
package config
