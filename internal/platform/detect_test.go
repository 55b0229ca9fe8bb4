package platform

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_MatchesRuntime(t *testing.T) {
	got := Detect()

	switch runtime.GOOS {
	case "darwin", "linux", "android":
		assert.Equal(t, OS(runtime.GOOS), got)
	default:
		assert.Equal(t, Unknown, got)
	}
}

func TestSupportsMulticast_ImpliedByLinux(t *testing.T) {
	if IsLinux() {
		assert.True(t, SupportsMulticast())
	}
	if Detect() == Unknown {
		assert.False(t, SupportsMulticast())
	}
}
