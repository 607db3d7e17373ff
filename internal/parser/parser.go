// Package parser converts raw command arguments into typed formation
// requests. It has no state besides a logger and never touches the
// simulation.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/railsim/formation/internal/util"
	"github.com/railsim/formation/pkg/core"
)

// ErrArgCount is returned when a command has the wrong number of arguments.
var ErrArgCount = errors.New("wrong number of arguments")

// Service is the parsing surface used by the worker.
type Service interface {
	ParseSpawn(data []string) (SpawnRequest, error)
	ParseRemove(data []string) (RemoveRequest, error)
	ParseCouple(data []string) (CoupleRequest, error)
	ParseUncouple(data []string) (UncoupleRequest, error)
	ParseState(data []string) (StateRequest, error)
	ParseDirection(data []string) (DirectionRequest, error)
	ParseNotch(data []string) (NotchRequest, error)
	ParseTick(data []string) (TickRequest, error)
}

var _ Service = (*Parser)(nil)

// Parser provides pure []string -> request conversion.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

// clean strips quoting from every argument and checks the count against
// [minArgs, maxArgs].
func clean(data []string, minArgs, maxArgs int) ([]string, error) {
	if len(data) < minArgs || len(data) > maxArgs {
		if minArgs == maxArgs {
			return nil, fmt.Errorf("got %d, want %d: %w", len(data), minArgs, ErrArgCount)
		}
		return nil, fmt.Errorf("got %d, want %d to %d: %w", len(data), minArgs, maxArgs, ErrArgCount)
	}
	out := make([]string, len(data))
	for i, v := range data {
		out[i] = strings.TrimSpace(util.FixEscapeQuotes(util.TrimQuotes(v)))
	}
	return out, nil
}

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Scripted callers frequently serialize every number as a float.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

func parseCarID(s string) (core.CarID, error) {
	v, err := parseUintFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("invalid car id: %w", err)
	}
	if v == 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("car id %d out of range", v)
	}
	return core.CarID(v), nil
}

// parseOrientation accepts the direction bit or its name.
func parseOrientation(s string) (core.Orientation, error) {
	switch strings.ToLower(s) {
	case "0", "forward":
		return core.Forward, nil
	case "1", "reverse":
		return core.Reverse, nil
	}
	return 0, fmt.Errorf("invalid orientation %q", s)
}

// parseSide accepts the coupler bit or its name.
func parseSide(s string) (core.CouplerSide, error) {
	switch strings.ToLower(s) {
	case "0", "front":
		return core.CouplerFront, nil
	case "1", "back":
		return core.CouplerBack, nil
	}
	return 0, fmt.Errorf("invalid coupler side %q", s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", s)
}

// parseChannel accepts a channel number or name.
func parseChannel(s string) (core.StateChannel, error) {
	if v, err := parseUintFromFloat(s); err == nil {
		ch := core.StateChannel(v)
		if v > math.MaxUint8 || !ch.Valid() {
			return 0, fmt.Errorf("unknown state channel %d", v)
		}
		return ch, nil
	}
	return core.ParseStateChannel(s)
}

var directionNames = map[string]byte{
	"front":  core.DirectionFront,
	"center": core.DirectionCenter,
	"back":   core.DirectionBack,
}

// parseStateData accepts a byte value. The direction channel additionally
// accepts its sentinel names.
func parseStateData(ch core.StateChannel, s string) (byte, error) {
	if ch == core.ChannelDirection {
		if v, ok := directionNames[strings.ToLower(s)]; ok {
			return v, nil
		}
	}
	v, err := parseUintFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("invalid state data: %w", err)
	}
	if v > math.MaxUint8 {
		return 0, fmt.Errorf("state data %d out of range", v)
	}
	return byte(v), nil
}
