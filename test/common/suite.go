package common

import (
	"os"
	"testing"
)

// ServerURL returns the target server for integration tests, skipping the
// test when none is configured so the suite stays opt-in.
func ServerURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_SERVER_URL")
	if url == "" {
		t.Skip("TEST_SERVER_URL not set; skipping integration test")
	}
	return url
}
