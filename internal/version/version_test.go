package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "dev", String())

	v, c, d := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = v, c, d })

	Version, GitCommit, BuildDate = "1.2.0", "abc123", "2026-10-01"
	assert.Equal(t, "1.2.0 (commit abc123, built 2026-10-01)", String())

	gotV, gotC, gotD := Info()
	assert.Equal(t, []string{"1.2.0", "abc123", "2026-10-01"}, []string{gotV, gotC, gotD})
}
