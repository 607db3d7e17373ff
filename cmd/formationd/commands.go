package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/railsim/formation/internal/dispatcher"
	"github.com/railsim/formation/internal/util"
)

// commandResponse is the JSON line written for every command read.
type commandResponse struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

type eventDispatcher interface {
	Dispatch(dispatcher.Event) (any, error)
}

// readCommands dispatches one command per line of r and writes a response
// line to w for each. It returns at EOF, on a read error or once ctx is
// done.
func readCommands(ctx context.Context, r io.Reader, d eventDispatcher, w io.Writer, logger *slog.Logger) error {
	enc := json.NewEncoder(w)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		cmd, args, err := util.SplitCommand(sc.Text())
		if err != nil {
			logger.Warn("Malformed command line", "error", err)
			if err := enc.Encode(commandResponse{Error: err.Error()}); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
			continue
		}
		if cmd == "" {
			continue
		}

		resp := commandResponse{Command: cmd, OK: true}
		result, err := d.Dispatch(dispatcher.Event{Command: cmd, Args: args})
		if err != nil {
			resp.OK = false
			resp.Error = err.Error()
		} else {
			resp.Result = result
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	return nil
}
