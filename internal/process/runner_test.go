package process

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeScript creates an executable shell script in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestNewExec_Defaults(t *testing.T) {
	e := NewExec(ExecConfig{})

	if e.config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want %v", e.config.Timeout, 10*time.Second)
	}
	if e.config.WaitDelay != 2*time.Second {
		t.Errorf("WaitDelay = %v, want %v", e.config.WaitDelay, 2*time.Second)
	}
	if e.config.MaxOutputBytes != 64<<10 {
		t.Errorf("MaxOutputBytes = %d, want %d", e.config.MaxOutputBytes, 64<<10)
	}
}

func TestExec_RunSuccess(t *testing.T) {
	script := writeScript(t, `echo "action=$1 r=$2 g=$3 b=$4 pin=$LED_PIN"`)
	e := NewExec(ExecConfig{Timeout: 5 * time.Second})

	res := e.Run(context.Background(), Invocation{
		Name:   "led",
		Binary: script,
		Args:   []string{"set_color", "255", "0", "10"},
		Env:    []string{"LED_PIN=18"},
	})

	if !res.Success() {
		t.Fatalf("Run() reason = %q, err = %v, stderr = %q", res.Reason, res.Err, res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	want := "action=set_color r=255 g=0 b=10 pin=18\n"
	if res.Stdout != want {
		t.Errorf("Stdout = %q, want %q", res.Stdout, want)
	}
}

func TestExec_RunNonZeroExit(t *testing.T) {
	script := writeScript(t, `echo partial; echo "no strip on pin" >&2; exit 3`)
	e := NewExec(ExecConfig{Timeout: 5 * time.Second})

	res := e.Run(context.Background(), Invocation{Name: "led", Binary: script})

	if res.Reason != ReasonExitStatus {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonExitStatus)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Stdout != "partial\n" || !strings.Contains(res.Stderr, "no strip on pin") {
		t.Errorf("output not captured: stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
	if res.Err == nil {
		t.Error("Err = nil for failed run")
	}
}

func TestExec_RunTimeoutKillsProcessGroup(t *testing.T) {
	// The forked sleep keeps stdout open; only a group kill ends it.
	script := writeScript(t, `sleep 30 & echo started; wait`)
	e := NewExec(ExecConfig{Timeout: 200 * time.Millisecond, WaitDelay: 500 * time.Millisecond})

	start := time.Now()
	res := e.Run(context.Background(), Invocation{Name: "slow", Binary: script})
	elapsed := time.Since(start)

	if res.Reason != ReasonTimedOut {
		t.Fatalf("Reason = %q, want %q (err = %v)", res.Reason, ReasonTimedOut, res.Err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Run() took %v, process group was not killed", elapsed)
	}
	if res.Stdout != "started\n" {
		t.Errorf("Stdout = %q, want output before the kill", res.Stdout)
	}
}

func TestExec_RunCanceled(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	e := NewExec(ExecConfig{Timeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res := e.Run(ctx, Invocation{Name: "slow", Binary: script})
	if res.Reason != ReasonCanceled {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonCanceled)
	}
}

func TestExec_RunSpawnFailure(t *testing.T) {
	e := NewExec(ExecConfig{})

	res := e.Run(context.Background(), Invocation{Name: "missing", Binary: "/nonexistent/binary"})

	if res.Reason != ReasonSpawnFailed {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonSpawnFailed)
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
}

func TestExec_RunTruncatesOutput(t *testing.T) {
	script := writeScript(t, `i=0; while [ $i -lt 100 ]; do echo 0123456789; i=$((i+1)); done`)
	e := NewExec(ExecConfig{MaxOutputBytes: 64})

	res := e.Run(context.Background(), Invocation{Name: "chatty", Binary: script})

	if !res.Success() {
		t.Fatalf("Run() reason = %q, err = %v", res.Reason, res.Err)
	}
	if len(res.Stdout) != 64 {
		t.Errorf("len(Stdout) = %d, want 64", len(res.Stdout))
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestLastJSONLine(t *testing.T) {
	tests := []struct {
		name   string
		out    string
		wantOK bool
		dryRun bool
	}{
		{"empty", "", false, false},
		{"plain text", "ok\n", false, false},
		{"object", `{"ok":true,"dryRun":true}` + "\n", true, true},
		{"log lines then object", "init strip\n" + `{"ok":true,"dryRun":false}` + "\n\n", true, false},
		{"object then text", `{"ok":true}` + "\ndone\n", false, false},
		{"array", "[1,2,3]\n", false, false},
		{"broken json", `{"ok":` + "\n", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LastJSONLine(tt.out)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Get("dryRun").Bool() != tt.dryRun {
				t.Errorf("dryRun = %v, want %v", got.Get("dryRun").Bool(), tt.dryRun)
			}
		})
	}
}
