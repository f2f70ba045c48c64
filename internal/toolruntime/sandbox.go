// Code sandbox: runs a code node's body as a subprocess with a wall-clock
// timeout, an RLIMIT_AS memory limit, a throwaway tempdir as its working
// directory, and an environment reduced to PATH. No CPU-time limit is set
// and network access is not blocked. A heavier microVM sandbox was
// considered and rejected for this module — see DESIGN.md.
package toolruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// OSSandbox implements executor.CodeSandbox.
type OSSandbox struct {
	Interpreters map[string]string // language -> interpreter binary, e.g. "python" -> "python3"
}

func NewOSSandbox() *OSSandbox {
	return &OSSandbox{Interpreters: map[string]string{
		"python":     "python3",
		"javascript": "node",
	}}
}

func (s *OSSandbox) Run(ctx context.Context, language, source string, timeoutMS, memoryLimitMB int, input map[string]any) (any, error) {
	bin, ok := s.Interpreters[language]
	if !ok {
		return nil, orcherr.New(orcherr.KindSandbox, "", "unsupported code node language %q", language)
	}

	dir, err := os.MkdirTemp("", "codenode-*")
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindSandbox, "", err, "failed to create sandbox directory")
	}
	defer os.RemoveAll(dir)

	srcPath := dir + "/main"
	if err := os.WriteFile(srcPath, []byte(source), 0o600); err != nil {
		return nil, orcherr.Wrap(orcherr.KindSandbox, "", err, "failed to write sandbox source")
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindSandbox, "", err, "failed to marshal sandbox input")
	}

	cctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(cctx, bin, srcPath)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(inputJSON)
	cmd.Env = []string{"PATH=/usr/bin:/bin"} // no inherited secrets, no proxy env for outbound network
	cmd.SysProcAttr = &syscall.SysProcAttr{}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	rlimitMu.Lock()
	restore := lowerProcessRlimits(memoryLimitMB)
	runErr := cmd.Run()
	restore()
	rlimitMu.Unlock()

	if err := runErr; err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return nil, orcherr.New(orcherr.KindTimeout, "", "code node exceeded %dms: %s", timeoutMS, stderr.String())
		}
		return nil, orcherr.Wrap(orcherr.KindSandbox, "", err, "code node exited with error: %s", stderr.String())
	}

	var out any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return stdout.String(), nil
	}
	return out, nil
}

var rlimitMu sync.Mutex

// lowerProcessRlimits temporarily tightens this process's RLIMIT_AS so
// that a child spawned by cmd.Run (which inherits rlimits at fork time)
// is bounded by memoryLimitMB, then returns a func restoring the prior
// limit. Go has no per-child rlimit hook in exec.Cmd, so this is the
// closest portable approximation; it briefly affects the whole process,
// which is acceptable because Run holds rlimitMu across lowering, running
// and restoring, so code nodes run one at a time.
func lowerProcessRlimits(memoryLimitMB int) func() {
	var original syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_AS, &original); err != nil {
		return func() {}
	}
	bound := uint64(memoryLimitMB) * 1024 * 1024
	tightened := syscall.Rlimit{Cur: bound, Max: original.Max}
	_ = syscall.Setrlimit(syscall.RLIMIT_AS, &tightened)
	return func() {
		_ = syscall.Setrlimit(syscall.RLIMIT_AS, &original)
	}
}
