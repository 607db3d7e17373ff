package parser

import "fmt"

// ParseCouple parses the arguments of a couple command.
func (p *Parser) ParseCouple(data []string) (CoupleRequest, error) {
	var req CoupleRequest
	args, err := clean(data, 4, 4)
	if err != nil {
		return req, fmt.Errorf("couple: %w", err)
	}

	if req.A, err = parseCarID(args[0]); err != nil {
		return req, fmt.Errorf("couple: first car: %w", err)
	}
	if req.B, err = parseCarID(args[1]); err != nil {
		return req, fmt.Errorf("couple: second car: %w", err)
	}
	if req.A == req.B {
		return req, fmt.Errorf("couple: car %d cannot couple to itself", req.A)
	}
	if req.DirA, err = parseOrientation(args[2]); err != nil {
		return req, fmt.Errorf("couple: first side: %w", err)
	}
	if req.DirB, err = parseOrientation(args[3]); err != nil {
		return req, fmt.Errorf("couple: second side: %w", err)
	}

	p.logger.Debug("Parsed couple", "a", req.A, "b", req.B, "dirA", req.DirA, "dirB", req.DirB)
	return req, nil
}

// ParseUncouple parses the arguments of an uncouple command.
func (p *Parser) ParseUncouple(data []string) (UncoupleRequest, error) {
	var req UncoupleRequest
	args, err := clean(data, 2, 2)
	if err != nil {
		return req, fmt.Errorf("uncouple: %w", err)
	}

	if req.Car, err = parseCarID(args[0]); err != nil {
		return req, fmt.Errorf("uncouple: %w", err)
	}
	if req.Side, err = parseSide(args[1]); err != nil {
		return req, fmt.Errorf("uncouple: %w", err)
	}
	return req, nil
}
