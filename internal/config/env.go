package config

import (
	"strconv"
	"strings"
)

// envOverrides turns prefixed variables into a nested config map.
// DOCENGINE_SNAPSHOT_CACHE_SIZE=10 becomes {"snapshot":{"cacheSize":10}}.
func envOverrides(prefix string, environ []string) map[string]any {
	config := make(map[string]any)
	for _, env := range environ {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		path := envToPath(strings.TrimPrefix(name, prefix))
		if path == "" {
			continue
		}
		setByPath(config, path, parseValue(value))
	}
	return config
}

// envToPath converts SERVER_MAX_BODY_BYTES to server.maxBodyBytes.
func envToPath(name string) string {
	parts := strings.Split(strings.ToLower(name), "_")
	if len(parts) < 2 || parts[0] == "" {
		return ""
	}
	setting := parts[1]
	for _, part := range parts[2:] {
		if part != "" {
			setting += strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return parts[0] + "." + setting
}

// parseValue attempts to parse the string value into an appropriate type.
// Durations stay strings and are parsed by Duration.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
