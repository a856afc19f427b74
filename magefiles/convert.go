//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// markitdownDockerfile builds the image the PDF text extractor runs. The
// container reads a PDF on stdin and writes Markdown to stdout.
const markitdownDockerfile = `FROM python:3.12-slim
RUN pip install --no-cache-dir 'markitdown[pdf]'
ENTRYPOINT ["markitdown"]
`

// Markitdown builds the markitdown:latest image with docker, or podman when
// BIOSEARCH_RUNTIME=podman.
func Markitdown() error {
	runtime := os.Getenv("BIOSEARCH_RUNTIME")
	if runtime == "" {
		runtime = "docker"
	}
	cmd := exec.Command(runtime, "build", "-t", "markitdown:latest", "-")
	cmd.Stdin = strings.NewReader(markitdownDockerfile)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s build: %w", runtime, err)
	}
	fmt.Println("Built markitdown:latest")
	return nil
}
