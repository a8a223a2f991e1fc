package config

import "os"

// getEnvOrDefault returns the environment variable at key, or defaultVal if
// it is unset or empty.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// lookupEnv returns the raw environment variable and whether it was set and
// non-empty, for the typed env* helpers to parse.
func lookupEnv(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
