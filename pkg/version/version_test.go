package version

import (
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()

	if !strings.HasPrefix(info, "truvo-agent version ") {
		t.Errorf("version info %q missing prefix", info)
	}
	for _, want := range []string{Version, GitCommit, "go:"} {
		if !strings.Contains(info, want) {
			t.Errorf("version info %q missing %q", info, want)
		}
	}
}
