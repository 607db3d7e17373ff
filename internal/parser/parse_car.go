package parser

import "fmt"

// ParseSpawn parses the arguments of a spawn command.
func (p *Parser) ParseSpawn(data []string) (SpawnRequest, error) {
	var req SpawnRequest
	args, err := clean(data, 2, 2)
	if err != nil {
		return req, fmt.Errorf("spawn: %w", err)
	}

	if req.Car, err = parseCarID(args[0]); err != nil {
		return req, fmt.Errorf("spawn: %w", err)
	}
	if req.Control, err = parseBool(args[1]); err != nil {
		return req, fmt.Errorf("spawn: control flag: %w", err)
	}
	return req, nil
}

// ParseRemove parses the arguments of a remove command.
func (p *Parser) ParseRemove(data []string) (RemoveRequest, error) {
	var req RemoveRequest
	args, err := clean(data, 1, 1)
	if err != nil {
		return req, fmt.Errorf("remove: %w", err)
	}
	if req.Car, err = parseCarID(args[0]); err != nil {
		return req, fmt.Errorf("remove: %w", err)
	}
	return req, nil
}
