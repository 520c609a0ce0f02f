package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/pksim/internal/fitting"
)

type assignment struct {
	name  string
	value float64
}

// parseAssignments reads name=value pairs in argument order.
func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %q", name, raw)
		}
		out = append(out, assignment{name: name, value: v})
	}
	return out, nil
}

// parseBounds reads name=lo:hi. An empty side is unbounded.
func parseBounds(arg string) (string, fitting.Bounds, error) {
	name, raw, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", fitting.Bounds{}, fmt.Errorf("expected name=lo:hi, got %q", arg)
	}
	lo, hi, ok := strings.Cut(raw, ":")
	if !ok {
		return "", fitting.Bounds{}, fmt.Errorf("expected lo:hi for %s, got %q", name, raw)
	}
	var b fitting.Bounds
	var err error
	if b.Lower, err = parseSide(lo); err != nil {
		return "", fitting.Bounds{}, fmt.Errorf("invalid lower bound for %s: %w", name, err)
	}
	if b.Upper, err = parseSide(hi); err != nil {
		return "", fitting.Bounds{}, fmt.Errorf("invalid upper bound for %s: %w", name, err)
	}
	return name, b, nil
}

func parseSide(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
