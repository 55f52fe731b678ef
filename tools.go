//go:build tools

package bundler

import (
	_ "go.uber.org/mock/mockgen/model" // tracked so `go generate` can run mockgen without a separate tool module
)
