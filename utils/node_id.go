package utils

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// GenerateNodeID returns an identifier for a relay process: the host name
// followed by eight hex characters of a random UUID.
func GenerateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "relay"
	}
	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToLower(host) + "-" + key[:8]
}
