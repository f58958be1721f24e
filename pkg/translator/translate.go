package translator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Unit is one named VM source, typically one .vm file.
type Unit struct {
	Scope  string
	Source string
}

// ParseUnits parses every unit concurrently. The result holds one command
// slice per unit, in the order the units were given. When several units are
// malformed, the error of the first one in unit order is returned, so the
// report does not depend on scheduling. Cancelling ctx stops the remaining
// work and returns the context error.
func ParseUnits(ctx context.Context, units []Unit) ([][]Command, error) {
	parsed := make([][]Command, len(units))
	errs := make([]error, len(units))
	g, gctx := errgroup.WithContext(ctx)

	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// syntax errors stay in their slot and do not cancel siblings
			parsed[i], errs[i] = Parse(u.Source, u.Scope)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return parsed, nil
}

// Merge joins per-unit command slices into one program, preserving unit order.
func Merge(parsed [][]Command) []Command {
	n := 0
	for _, cmds := range parsed {
		n += len(cmds)
	}
	program := make([]Command, 0, n)
	for _, cmds := range parsed {
		program = append(program, cmds...)
	}
	return program
}

// Translate runs the whole pipeline: parse every unit, merge in unit order,
// generate, and render. Either the complete program text is returned or an
// error; never partial output.
func Translate(ctx context.Context, units []Unit, opts Options) (string, error) {
	parsed, err := ParseUnits(ctx, units)
	if err != nil {
		return "", err
	}
	code, err := Generate(Merge(parsed), opts)
	if err != nil {
		return "", err
	}
	return Render(code), nil
}
