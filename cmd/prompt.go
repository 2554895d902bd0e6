package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
)

// chanPrompter hands the control loop the commands coming from the
// terminal and, when enabled, the named pipe. It reports the end of input
// once cmds is closed or done is.
type chanPrompter struct {
	prompt string
	out    io.Writer

	cmds <-chan string
	done <-chan struct{}
}

func (p *chanPrompter) ReadCommand() (string, error) {
	fmt.Fprint(p.out, p.prompt)

	select {
	case cmd, ok := <-p.cmds:
		if !ok {
			// Leave the terminal on a fresh line after a Ctrl-D.
			fmt.Fprintln(p.out)
			return "", io.EOF
		}
		return cmd, nil
	case <-p.done:
		return "", io.EOF
	}
}

// scanCommands pushes every line read from r onto cmds. Once r is
// exhausted cmds is closed, unless keepOpen is set: other producers may
// still be around.
func scanCommands(r io.Reader, cmds chan<- string, done <-chan struct{}, keepOpen bool) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		select {
		case cmds <- s.Text():
		case <-done:
			return
		}
	}

	if err := s.Err(); err != nil {
		slog.Error("error reading commands", "err", err)
	}

	if keepOpen {
		slog.Info("end of terminal input, still taking commands from the named pipe")
		return
	}
	close(cmds)
}
