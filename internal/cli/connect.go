package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"peek/internal/db"
	"peek/internal/domain"
	"peek/internal/retry"
)

// Connect opens url, retrying transient failures with backoff from rc.
func Connect(ctx context.Context, url string, rc retry.Config, logger zerolog.Logger) (*db.Database, error) {
	attempt := 0
	return retry.Value(ctx, rc, func(ctx context.Context) (*db.Database, error) {
		attempt++
		d, err := connectDatabase(ctx, url, db.WithLogger(logger))
		if err != nil {
			logger.Debug().Err(err).Int("attempt", attempt).Msg("connect failed")
			return nil, err
		}
		return d, nil
	})
}

// SelectConnection finds a configured connection by name. name may be the bare
// connection name, "workspace/connection", or the display form
// "[workspace] connection". An empty name selects the only connection.
func SelectConnection(choices []domain.ConnectionChoice, name string) (domain.ConnectionChoice, error) {
	if len(choices) == 0 {
		return domain.ConnectionChoice{}, fmt.Errorf("no connections configured (add one under workspaces in the config file)")
	}
	if name == "" {
		if len(choices) == 1 {
			return choices[0], nil
		}
		return domain.ConnectionChoice{}, fmt.Errorf("%d connections configured; pick one with --connection", len(choices))
	}

	var matches []domain.ConnectionChoice
	for _, c := range choices {
		if name == c.DisplayName() || name == c.Workspace+"/"+c.Connection.Name {
			return c, nil
		}
		if name == c.Connection.Name {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return domain.ConnectionChoice{}, fmt.Errorf("unknown connection %q", name)
	case 1:
		return matches[0], nil
	default:
		return domain.ConnectionChoice{}, fmt.Errorf("connection %q exists in several workspaces; use workspace/%s", name, name)
	}
}

// PromptConnection lists choices on out and reads a 1-based selection from in.
// Pass the same *bufio.Reader to Loop.Run afterwards to keep buffered input.
func PromptConnection(in io.Reader, out io.Writer, choices []domain.ConnectionChoice) (domain.ConnectionChoice, error) {
	if len(choices) == 0 {
		return domain.ConnectionChoice{}, fmt.Errorf("no connections configured (add one under workspaces in the config file)")
	}
	for i, c := range choices {
		fmt.Fprintf(out, "  %d) %s\n", i+1, c.DisplayName())
	}
	br := lineReader(in)
	for {
		fmt.Fprint(out, "Select a connection: ")
		line, err := readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.ConnectionChoice{}, io.ErrUnexpectedEOF
			}
			return domain.ConnectionChoice{}, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(choices) {
			fmt.Fprintf(out, "Enter a number between 1 and %d.\n", len(choices))
			continue
		}
		return choices[n-1], nil
	}
}
