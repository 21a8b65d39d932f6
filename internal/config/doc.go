// Package config loads docengine's server configuration.
//
// Configuration is resolved in layers, higher layers overriding lower:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. DOCENGINE_* environment variables
//
// Environment variables map to dotted keys: DOCENGINE_SERVER_ADDR sets
// server.addr and DOCENGINE_SNAPSHOT_CACHE_SIZE sets snapshot.cacheSize.
// The merged result is validated with go-playground/validator.
//
// Watch reloads the file when it changes so that settings such as the log
// level can be applied without a restart.
package config
