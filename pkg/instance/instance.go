package instance

import "os"

// GetID returns the worker instance identifier, falling back to the
// hostname so replicas in a deployment stay distinguishable in logs
// and lock values.
func GetID() string {
	if id := os.Getenv("SOKO_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
