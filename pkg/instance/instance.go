package instance

import (
	"os"

	"github.com/angelmondragon/neurocare-backend/pkg/env"
)

const fallbackID = "neurocare-0"

// GetID identifies this process: NEUROCARE_INSTANCE_ID, then DYNO, then the hostname.
func GetID() string {
	if id := env.FirstOf("", "NEUROCARE_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
