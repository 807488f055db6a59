package executable

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"
)

// runTTY runs cmd with stdout and stderr attached to a pseudo-terminal so
// that the program sees an interactive terminal. Both streams are merged.
// Stdin stays a pipe.
func runTTY(cmd *exec.Cmd) (string, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return "", fmt.Errorf("open pty: %w", err)
	}
	defer ptmx.Close()

	cmd.Stdout = tty
	cmd.Stderr = tty
	if err := cmd.Start(); err != nil {
		tty.Close()
		return "", err
	}
	tty.Close()

	var out bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Reading fails with EIO once every holder of the terminal exits.
		_, _ = io.Copy(&out, ptmx)
	}()

	err = cmd.Wait()
	select {
	case <-done:
	case <-time.After(time.Second):
		ptmx.Close()
		<-done
	}
	return out.String(), err
}
