package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/regionsel/internal/adapters/embeddings"
	"github.com/okian/regionsel/internal/domain/types"
)

type selectResult struct {
	Results []types.BatchResult `json:"results"`
}

func newSelectCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "select <query-file>",
		Short: "Select the nearest region for each query",
		Long: `Select the region whose profile is nearest, by Mahalanobis distance, to
each query read from a file ("-" reads stdin).

A .npy file holds one query per row; rows are named by their index. A JSON
file is either a single {"vector": [...]} object or a list of
{"id": "...", "vector": [...]} objects.

Examples:
  regionctl select query.npy
  regionctl select queries.json -o results.json
  echo '{"vector":[0.1,0.2]}' | regionctl select -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := g.startService(ctx)
			if err != nil {
				return err
			}
			defer svc.Stop()

			summary, err := svc.Profiles(ctx)
			if err != nil {
				return fmt.Errorf("no profile set at %q: %w", g.cfg.ProfileKey, err)
			}

			queries, err := parseQueries(args[0], data, summary.Dim)
			if err != nil {
				return err
			}
			results, err := svc.SelectQueries(ctx, queries)
			if err != nil {
				return err
			}
			if results == nil {
				results = []types.BatchResult{}
			}
			return g.writeResult(cmd, selectResult{Results: results})
		},
	}
}

// parseQueries decodes a query file. dim is used to shape .npy rows.
func parseQueries(name string, data []byte, dim int) ([]types.BatchQuery, error) {
	if strings.EqualFold(filepath.Ext(name), ".npy") {
		arr, err := embeddings.DecodeNPY(data)
		if err != nil {
			return nil, err
		}
		rows, err := arr.Rows(dim)
		if err != nil {
			return nil, err
		}
		queries := make([]types.BatchQuery, len(rows))
		for i, row := range rows {
			queries[i] = types.BatchQuery{ID: strconv.Itoa(i), Vector: row}
		}
		return queries, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var queries []types.BatchQuery
		if err := json.Unmarshal(trimmed, &queries); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return queries, nil
	}

	var single types.BatchQuery
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if single.Vector == nil {
		return nil, fmt.Errorf("query has no vector")
	}
	return []types.BatchQuery{single}, nil
}
