package np

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/rjeczalik/notify"
)

var logger *slog.Logger

// NamedPipePlugin feeds operator commands (i.e. start, stop and exit)
// written to a named pipe into the control loop, one per line. It lets the
// monitor be driven without a terminal.
type NamedPipePlugin struct {
	Config

	outChan chan<- string
}

func NewNamedPipePlugin(c *Config, outChan chan<- string) (*NamedPipePlugin, error) {
	logger = slog.Default().With("t", "np")

	if outChan == nil {
		return nil, errors.New("no command channel provided")
	}
	return &NamedPipePlugin{Config: *c, outChan: outChan}, nil
}

func (np *NamedPipePlugin) String() string {
	return "named pipe"
}

func (np *NamedPipePlugin) Init() error {
	logger.Debug("initialising the named pipe plugin")

	if _, err := os.Stat(np.PipePath); !errors.Is(err, os.ErrNotExist) {
		logger.Debug("it looks like the named pipe exists!")
		return nil
	}

	// Consider using the unix package...
	if err := syscall.Mkfifo(np.PipePath, 0600); err != nil {
		return fmt.Errorf("couldn't create the named pipe: %w", err)
	}

	return nil
}

func (np *NamedPipePlugin) Run(done <-chan struct{}) {
	logger.Debug("running the named pipe plugin")

	// If we open the FIFO (i.e. named pipe) only for reading, the call will block
	// until there's at least a writer. If we instead open the pipe with O_RDWR we
	// are ourselves a writer and so the blocking won't take place. O_NONBLOCK would
	// be the 'correct' approach, but it's not portable to Darwin.
	pipe, err := os.OpenFile(np.PipePath, os.O_RDWR, os.ModeNamedPipe)
	if err != nil {
		logger.Error("couldn't open the named pipe", "err", err)
		return
	}
	defer pipe.Close()

	// A buffered channel guarantees that we don't loose events even
	// if writes take place at the exact same time
	c := make(chan notify.EventInfo, np.EventBacklog)

	// Hook the notifications
	if err := notify.Watch(np.PipePath, c, notify.Write|notify.Remove); err != nil {
		logger.Error("couldn't watch the named pipe", "err", err)
		return
	}
	defer notify.Stop(c)

	// Listen for events
	buff := make([]byte, np.ReadSize)
	for {
		select {
		case e := <-c:
			switch e.Event() {
			case notify.Write:
				n, err := pipe.Read(buff)
				if err != nil {
					logger.Warn("error reading pipe", "err", err)
					continue
				}
				logger.Debug("read pipe", "n", n)
				for _, cmd := range parseCommands(string(buff[:n])) {
					select {
					case np.outChan <- cmd:
					case <-done:
						return
					}
				}
			case notify.Remove:
				logger.Error("the named pipe was removed from under us!")
				return
			}
		case <-done:
			logger.Debug("cleanly exiting the np plugin")
			return
		}
	}
}

func (np *NamedPipePlugin) Cleanup() error {
	logger.Debug("cleaning up the named pipe plugin")
	if err := os.Remove(np.PipePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing named pipe: %w", err)
	}
	return nil
}

// parseCommands splits what was read off the pipe into commands. Blank
// lines are dropped: the control loop would ignore them anyway.
func parseCommands(raw string) []string {
	cmds := []string{}
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			cmds = append(cmds, l)
		}
	}
	return cmds
}
