package commands

import (
	"github.com/spf13/cobra"

	app "github.com/okian/regionsel/internal/app"
	"github.com/okian/regionsel/internal/domain/types"
)

type skippedItem struct {
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

type buildResult struct {
	Profile     types.ProfileSummary `json:"profile"`
	Samples     int                  `json:"samples"`
	Items       int                  `json:"items"`
	Regularized []string             `json:"regularized"`
	Excluded    []string             `json:"excluded"`
	Skipped     []skippedItem        `json:"skipped"`
}

func newBuildCmd(g *globals) *cobra.Command {
	var (
		regionMap string
		prefix    string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build region profiles from labeled embeddings",
		Long: `Read the region map, load every listed embedding and aggregate the
samples into one profile per region. The profile set is written to the
profile key and the build report is printed.

The region map is a "filename,region" CSV file with a header line.
Embeddings are .npy files of float32 or float64 rows under the embeddings
prefix.

Examples:
  regionctl build
  regionctl build --region-map maps/train.csv --prefix embeddings/train/
  regionctl build --profile-key region_profiles.msgpack.zst -o report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []app.Option
			if regionMap != "" {
				opts = append(opts, app.WithRegionMapKey(regionMap))
			}
			if prefix != "" {
				opts = append(opts, app.WithEmbeddingsPrefix(prefix))
			}

			ctx := cmd.Context()
			svc, err := g.startService(ctx, opts...)
			if err != nil {
				return err
			}
			defer svc.Stop()

			report, err := svc.Rebuild(ctx)
			if err != nil {
				return err
			}

			result := buildResult{
				Profile:     app.Summarize(report.Snapshot),
				Samples:     report.Build.Samples,
				Items:       report.Load.Items,
				Regularized: nonNil(report.Build.Regularized),
				Excluded:    nonNil(report.Build.Excluded),
				Skipped:     []skippedItem{},
			}
			for _, s := range report.Load.Skipped {
				item := skippedItem{Name: s.Name, Region: s.Region, Reason: s.Reason}
				if s.Err != nil {
					item.Error = s.Err.Error()
				}
				result.Skipped = append(result.Skipped, item)
			}
			return g.writeResult(cmd, result)
		},
	}

	cmd.Flags().StringVar(&regionMap, "region-map", "", "Region map object key (overrides region_map_key)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Embeddings prefix (overrides embeddings_prefix)")
	return cmd
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
