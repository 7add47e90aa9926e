// Package testing pins the environment of packages that blank-import it:
// test mode on, in-memory store, no Redis or Postgres.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var offline = map[string]string{
	"ADMINPORTAL_TEST_MODE": "1",
	"STORE_DRIVER":          "memory",
	"AUDIT_ENABLED":         "false",
}

var cleared = []string{"PG_DSN", "REDIS_ADDR", "ADMIN_TOKEN_HASH"}

var once sync.Once

func pinEnvironment() {
	once.Do(func() {
		for k, v := range offline {
			_ = os.Setenv(k, v)
		}
		for _, k := range cleared {
			_ = os.Unsetenv(k)
		}
	})
}

func init() {
	pinEnvironment()
}

func TestMain(m *stdtesting.M) {
	pinEnvironment()
	os.Exit(m.Run())
}
