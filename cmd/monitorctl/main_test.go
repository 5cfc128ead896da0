package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// TestScripts drives the built monitorctl binary through testdata/script,
// mirroring how myq-status's own CLI is exercised end to end rather than
// through unit tests of individual Run funcs.
func TestScripts(t *testing.T) {
	binary := filepath.Join(t.TempDir(), "monitorctl")
	cmd := exec.Command("go", "build", "-o", binary)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, out)
	}

	engine := &script.Engine{
		Cmds:  scripttest.DefaultCmds(),
		Conds: scripttest.DefaultConds(),
	}

	env := append(os.Environ(), "PATH="+filepath.Dir(binary)+string(os.PathListSeparator)+os.Getenv("PATH"))

	pattern := filepath.Join("testdata", "script", "*.txt")
	scripttest.Test(t, context.Background(), engine, env, pattern)
}
