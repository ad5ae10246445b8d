package commands

import "testing"

func TestPurgeDefaultsToDryRun(t *testing.T) {
	cmd := newPurgeCommand()

	flag := cmd.Flag("dry-run")
	if flag == nil {
		t.Fatal("purge command must expose a dry-run flag")
	}
	if flag.DefValue != "true" {
		t.Errorf("dry-run default = %s, want true so a bare purge deletes nothing", flag.DefValue)
	}
}
