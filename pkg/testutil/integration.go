// Package testutil holds helpers for container-backed integration tests.
package testutil

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// IntegrationEnv enables integration tests in CI when set to any value.
const IntegrationEnv = "SEARCHREPO_INTEGRATION_TESTS"

// RequireIntegration skips the test in short mode, and in CI unless IntegrationEnv is set.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv(IntegrationEnv) == "" && os.Getenv("CI") != "" {
		t.Skip("skipping integration test (set " + IntegrationEnv + "=1 to run)")
	}
}

// Terminate stops container when the test finishes.
func Terminate(t *testing.T, container testcontainers.Container) {
	t.Helper()
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
}
