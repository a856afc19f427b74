// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs downloaded documents through converter images. Each
// conversion is a one-shot docker or podman container with no network, a
// read-only root filesystem and bounded memory, fed on stdin.
package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// stderrTail bounds how much converter stderr is kept for error messages.
const stderrTail = 2048

// Runtime runs converter images.
type Runtime interface {
	// Name returns the runtime binary ("docker" or "podman").
	Name() string

	// Available reports whether the binary is on PATH and its daemon or
	// service answers.
	Available() bool

	// ImageExists returns nil when image is present locally.
	ImageExists(image string) error

	// Run starts image in the sandbox with stdin attached and copies its
	// stdout to stdout. The container is killed when ctx is done.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// Sandbox bounds a converter container. Empty fields leave the runtime's
// default in place.
type Sandbox struct {
	Memory string // --memory, e.g. "1g"
	CPUs   string // --cpus
	PIDs   int    // --pids-limit
}

// DefaultSandbox is applied when Options.Sandbox is the zero value.
var DefaultSandbox = Sandbox{Memory: "1g", CPUs: "1", PIDs: 256}

func (s Sandbox) args() []string {
	args := []string{
		"--network", "none",
		"--read-only",
		"--tmpfs", "/tmp",
		"--security-opt", "no-new-privileges",
	}
	if s.Memory != "" {
		args = append(args, "--memory", s.Memory)
	}
	if s.CPUs != "" {
		args = append(args, "--cpus", s.CPUs)
	}
	if s.PIDs > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(s.PIDs))
	}
	return args
}

// Options selects and configures a runtime.
type Options struct {
	// Preferred is "docker" or "podman". Empty tries docker, then podman.
	Preferred string
	Sandbox   Sandbox
}

// commander runs external commands. Tests substitute a fake.
type commander interface {
	LookPath(file string) (string, error)
	Quiet(name string, args ...string) error
	Pipe(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osCommander struct{}

func (osCommander) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osCommander) Quiet(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (osCommander) Pipe(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine is a Runtime for one binary. Docker and podman differ only in the
// name and how an image is checked.
type engine struct {
	bin     string
	inspect []string
	sandbox Sandbox
	cmd     commander
}

func newEngine(bin string, sb Sandbox, cmd commander) (*engine, error) {
	e := &engine{bin: bin, sandbox: sb, cmd: cmd}
	switch bin {
	case binDocker:
		e.inspect = []string{"image", "inspect"}
	case binPodman:
		e.inspect = []string{"image", "exists"}
	default:
		return nil, fmt.Errorf("unsupported container runtime %q (want %s or %s)", bin, binDocker, binPodman)
	}
	return e, nil
}

func (e *engine) Name() string { return e.bin }

func (e *engine) Available() bool {
	if _, err := e.cmd.LookPath(e.bin); err != nil {
		return false
	}
	return e.cmd.Quiet(e.bin, "info") == nil
}

func (e *engine) ImageExists(image string) error {
	args := append(append([]string(nil), e.inspect...), image)
	if err := e.cmd.Quiet(e.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, e.bin, err)
	}
	return nil
}

func (e *engine) runArgs(image string) []string {
	args := []string{"run", "--rm", "-i"}
	args = append(args, e.sandbox.args()...)
	return append(args, image)
}

func (e *engine) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	stderr := &tailBuffer{max: stderrTail}
	if err := e.cmd.Pipe(ctx, e.bin, e.runArgs(image), stdin, stdout, stderr); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("running %s in %s: %w: %s", image, e.bin, err, msg)
		}
		return fmt.Errorf("running %s in %s: %w", image, e.bin, err)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

// Detect returns the first available runtime: opts.Preferred alone when
// set, otherwise docker and then podman.
func Detect(opts Options) (Runtime, error) {
	return detect(opts, osCommander{})
}

func detect(opts Options, cmd commander) (Runtime, error) {
	sb := opts.Sandbox
	if sb == (Sandbox{}) {
		sb = DefaultSandbox
	}
	candidates := []string{binDocker, binPodman}
	if p := strings.ToLower(strings.TrimSpace(opts.Preferred)); p != "" {
		candidates = []string{p}
	}

	for _, bin := range candidates {
		e, err := newEngine(bin, sb, cmd)
		if err != nil {
			return nil, err
		}
		if e.Available() {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no container runtime available: tried %s", strings.Join(candidates, ", "))
}
