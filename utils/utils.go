package utils

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/oklog/ulid"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var (
	ulidMutex   = sync.Mutex{}
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// Ternary returns a when condition holds, b otherwise
func Ternary(condition bool, a, b any) any {
	if condition {
		return a
	}
	return b
}

// ULID returns a lexically sortable unique id
func ULID() string {
	ulidMutex.Lock()
	defer ulidMutex.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// IsValidSubcommand reports whether name matches one of the registered commands
func IsValidSubcommand(available []*cobra.Command, name string) bool {
	for _, command := range available {
		if command.Name() == name || command.HasAlias(name) {
			return true
		}
	}
	return false
}

// Marshal renders v as indented json or yaml
func Marshal(v any, format string) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(format, "yaml") {
		return yaml.JSONToYAML(b)
	}
	return b, nil
}
