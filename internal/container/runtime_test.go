// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCommander answers LookPath and Quiet from tables and delegates Pipe.
type fakeCommander struct {
	onPath map[string]bool // binary -> LookPath succeeds
	quiet  map[string]bool // "bin arg..." -> Quiet succeeds
	pipe   func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

func (f *fakeCommander) LookPath(file string) (string, error) {
	if f.onPath[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (f *fakeCommander) Quiet(name string, args ...string) error {
	key := strings.Join(append([]string{name}, args...), " ")
	if f.quiet[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (f *fakeCommander) Pipe(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if f.pipe != nil {
		return f.pipe(name, args, stdin, stdout, stderr)
	}
	return nil
}

func mustEngine(t *testing.T, bin string, cmd commander) *engine {
	t.Helper()
	e, err := newEngine(bin, DefaultSandbox, cmd)
	require.NoError(t, err)
	return e
}

func TestDetect(t *testing.T) {
	both := map[string]bool{"docker": true, "podman": true}
	tests := []struct {
		name      string
		preferred string
		onPath    map[string]bool
		quiet     map[string]bool
		want      string
		wantErr   string
	}{
		{name: "docker first", onPath: both, quiet: map[string]bool{"docker info": true, "podman info": true}, want: "docker"},
		{name: "podman when docker missing", onPath: map[string]bool{"podman": true}, quiet: map[string]bool{"podman info": true}, want: "podman"},
		{name: "podman when docker daemon is down", onPath: both, quiet: map[string]bool{"podman info": true}, want: "podman"},
		{name: "preferred podman", preferred: "Podman", onPath: both, quiet: map[string]bool{"docker info": true, "podman info": true}, want: "podman"},
		{name: "preferred runtime is not replaced", preferred: "docker", onPath: both, quiet: map[string]bool{"podman info": true}, wantErr: "tried docker"},
		{name: "neither", wantErr: "no container runtime available: tried docker, podman"},
		{name: "unknown preferred", preferred: "lxc", wantErr: `unsupported container runtime "lxc"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detect(Options{Preferred: tt.preferred}, &fakeCommander{onPath: tt.onPath, quiet: tt.quiet})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rt.Name())
		})
	}
}

func TestDetectAppliesDefaultSandbox(t *testing.T) {
	cmd := &fakeCommander{onPath: map[string]bool{"docker": true}, quiet: map[string]bool{"docker info": true}}
	rt, err := detect(Options{}, cmd)
	require.NoError(t, err)
	assert.Equal(t, DefaultSandbox, rt.(*engine).sandbox)

	rt, err = detect(Options{Sandbox: Sandbox{Memory: "512m"}}, cmd)
	require.NoError(t, err)
	assert.Equal(t, Sandbox{Memory: "512m"}, rt.(*engine).sandbox)
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		bin   string
		check string
	}{
		{"docker", "docker image inspect markitdown:latest"},
		{"podman", "podman image exists markitdown:latest"},
	}
	for _, tt := range tests {
		t.Run(tt.bin, func(t *testing.T) {
			present := mustEngine(t, tt.bin, &fakeCommander{quiet: map[string]bool{tt.check: true}})
			assert.NoError(t, present.ImageExists("markitdown:latest"))

			missing := mustEngine(t, tt.bin, &fakeCommander{})
			err := missing.ImageExists("markitdown:latest")
			assert.ErrorContains(t, err, "markitdown:latest")
			assert.ErrorContains(t, err, tt.bin)
		})
	}
}

func TestRunPipesThroughSandbox(t *testing.T) {
	var gotName string
	var gotArgs []string
	cmd := &fakeCommander{pipe: func(name string, args []string, stdin io.Reader, stdout, _ io.Writer) error {
		gotName, gotArgs = name, args
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write([]byte("# " + string(data)))
		return nil
	}}
	e := mustEngine(t, "podman", cmd)

	var out bytes.Buffer
	require.NoError(t, e.Run(context.Background(), "markitdown:latest", strings.NewReader("pdf"), &out))
	assert.Equal(t, "# pdf", out.String())
	assert.Equal(t, "podman", gotName)
	assert.Equal(t,
		"run --rm -i --network none --read-only --tmpfs /tmp --security-opt no-new-privileges --memory 1g --cpus 1 --pids-limit 256 markitdown:latest",
		strings.Join(gotArgs, " "))
}

func TestRunArgsOmitUnsetLimits(t *testing.T) {
	e, err := newEngine("docker", Sandbox{}, &fakeCommander{})
	require.NoError(t, err)
	assert.Equal(t, "run --rm -i --network none --read-only --tmpfs /tmp --security-opt no-new-privileges img",
		strings.Join(e.runArgs("img"), " "))
}

func TestRunReportsStderr(t *testing.T) {
	cmd := &fakeCommander{pipe: func(_ string, _ []string, _ io.Reader, _, stderr io.Writer) error {
		_, _ = stderr.Write([]byte("Traceback: not a PDF\n"))
		return errors.New("exit status 1")
	}}
	err := mustEngine(t, "docker", cmd).Run(context.Background(), "markitdown:latest", strings.NewReader(""), io.Discard)
	assert.EqualError(t, err, "running markitdown:latest in docker: exit status 1: Traceback: not a PDF")
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 4}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, _ = b.Write([]byte("def"))
	assert.Equal(t, "cdef", b.String())
}

func TestOSCommanderHonoursContext(t *testing.T) {
	if _, err := (osCommander{}).LookPath("sleep"); err != nil {
		t.Skip("sleep not on PATH")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := osCommander{}.Pipe(ctx, "sleep", []string{"5"}, strings.NewReader(""), io.Discard, io.Discard)
	assert.Error(t, err)
}
