package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertStageRan checks the log output to confirm that a stage has finished
// successfully. It relies only on the structured stage attribute, so tests
// survive changes to the message wording around it.
func AssertStageRan(t *testing.T, logOutput, stageName string) {
	t.Helper()
	require.True(t, stageLogged(logOutput, stageName, "Stage finished."),
		"expected a finished record for stage '%s' in the logs", stageName)
}

// AssertStageSkipped checks the log output for the skip notice of a stage.
func AssertStageSkipped(t *testing.T, logOutput, stageName string) {
	t.Helper()
	require.True(t, stageLogged(logOutput, stageName, "Skipping stage"),
		"expected a skip notice for stage '%s' in the logs", stageName)
}

func stageLogged(logOutput, stageName, msg string) bool {
	attr := "stage=" + stageName + " "
	for _, line := range strings.Split(logOutput, "\n") {
		if strings.Contains(line, msg) && strings.Contains(line+" ", attr) {
			return true
		}
	}
	return false
}
