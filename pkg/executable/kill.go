package executable

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// killTree kills p and every descendant. Descendants are collected first so
// that reparenting after the root dies does not hide them.
func killTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	root, err := process.NewProcess(int32(p.Pid))
	if err != nil {
		// Already gone.
		return p.Kill()
	}
	descendants := collect(root)
	if err := root.Kill(); err != nil {
		if kerr := p.Kill(); kerr != nil {
			return fmt.Errorf("failed to terminate process %d: %w", p.Pid, err)
		}
	}
	for _, d := range descendants {
		_ = d.Kill()
	}
	return nil
}

func collect(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil {
		return nil
	}
	out := make([]*process.Process, 0, len(children))
	for _, c := range children {
		out = append(out, c)
		out = append(out, collect(c)...)
	}
	return out
}
