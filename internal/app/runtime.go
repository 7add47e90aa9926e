package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv makes the binaries return before opening listeners or workers.
const TestModeEnv = "ADMINPORTAL_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testMode.Store(parseTestMode(os.Getenv(TestModeEnv)))
}

// parseTestMode accepts strconv.ParseBool forms; anything else is off.
func parseTestMode(raw string) bool {
	on, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && on
}

// InTestMode reports whether portal and worker startup should be skipped.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
