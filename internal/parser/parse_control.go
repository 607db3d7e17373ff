package parser

import (
	"fmt"
	"math"
)

// ParseState parses the arguments of a state command.
func (p *Parser) ParseState(data []string) (StateRequest, error) {
	var req StateRequest
	args, err := clean(data, 3, 3)
	if err != nil {
		return req, fmt.Errorf("state: %w", err)
	}

	if req.Car, err = parseCarID(args[0]); err != nil {
		return req, fmt.Errorf("state: %w", err)
	}
	if req.Channel, err = parseChannel(args[1]); err != nil {
		return req, fmt.Errorf("state: %w", err)
	}
	if req.Data, err = parseStateData(req.Channel, args[2]); err != nil {
		return req, fmt.Errorf("state: %s: %w", req.Channel, err)
	}
	return req, nil
}

// ParseDirection parses the arguments of a direction command.
func (p *Parser) ParseDirection(data []string) (DirectionRequest, error) {
	var req DirectionRequest
	args, err := clean(data, 2, 2)
	if err != nil {
		return req, fmt.Errorf("direction: %w", err)
	}

	if req.Car, err = parseCarID(args[0]); err != nil {
		return req, fmt.Errorf("direction: %w", err)
	}
	if req.Dir, err = parseOrientation(args[1]); err != nil {
		return req, fmt.Errorf("direction: %w", err)
	}
	return req, nil
}

// ParseNotch parses the arguments of a notch command. Range checks are
// left to the simulation.
func (p *Parser) ParseNotch(data []string) (NotchRequest, error) {
	var req NotchRequest
	args, err := clean(data, 2, 2)
	if err != nil {
		return req, fmt.Errorf("notch: %w", err)
	}

	if req.Car, err = parseCarID(args[0]); err != nil {
		return req, fmt.Errorf("notch: %w", err)
	}
	notch, err := parseIntFromFloat(args[1])
	if err != nil {
		return req, fmt.Errorf("notch: invalid notch: %w", err)
	}
	if notch < math.MinInt32 || notch > math.MaxInt32 {
		return req, fmt.Errorf("notch: %d out of range", notch)
	}
	req.Notch = int(notch)
	return req, nil
}

// ParseTick parses the optional step count of a tick command. Without an
// argument one step is taken.
func (p *Parser) ParseTick(data []string) (TickRequest, error) {
	req := TickRequest{N: 1}
	args, err := clean(data, 0, 1)
	if err != nil {
		return req, fmt.Errorf("tick: %w", err)
	}
	if len(args) == 0 {
		return req, nil
	}

	n, err := parseUintFromFloat(args[0])
	if err != nil {
		return req, fmt.Errorf("tick: invalid count: %w", err)
	}
	if n == 0 || n > math.MaxInt32 {
		return req, fmt.Errorf("tick: count %d out of range", n)
	}
	req.N = int(n)
	return req, nil
}
