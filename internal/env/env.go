package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ConfigPath       = "RELAY_CONFIG"
	NodeID           = "RELAY_NODE_ID"
	ServerAddr       = "RELAY_ADDR"
	AllowedOrigins   = "RELAY_ALLOWED_ORIGINS"
	AdminEnabled     = "RELAY_ADMIN_ENABLED"
	SendWelcome      = "RELAY_SEND_WELCOME"
	PingInterval     = "RELAY_PING_INTERVAL"
	LogLevel         = "LOG_LEVEL"
	LogFormat        = "LOG_FORMAT"
	RedisEnabled     = "RELAY_REDIS_ENABLED"
	RedisURL         = "RELAY_REDIS_URL"
	RedisPass        = "RELAY_REDIS_PASS"
	SessionStore     = "RELAY_SESSION_STORE"
	SessionDSN       = "RELAY_SESSION_DSN"
	SessionTable     = "RELAY_SESSION_TABLE"
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
)

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}

// Lookup returns the value of key and whether it was set to a non-empty value.
func Lookup(key string) (string, bool) {
	val := os.Getenv(key)
	return val, val != ""
}

func GetBool(key string, defaultVal bool) bool {
	val, ok := Lookup(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func GetInt(key string, defaultVal int) int {
	val, ok := Lookup(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func GetDuration(key string, defaultVal time.Duration) time.Duration {
	val, ok := Lookup(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// GetList splits a comma separated value, dropping empty items.
func GetList(key string) []string {
	val, ok := Lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
