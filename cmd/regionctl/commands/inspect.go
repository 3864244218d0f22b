package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/regionsel/internal/domain/selector"
)

func newInspectCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Describe the persisted profile set",
		Long: `Load the profile set from the profile key and print, per region, the
sample count, whether the covariance was regularized, the factorization
method and whether the region can be used for selection.

Examples:
  regionctl inspect
  regionctl inspect --profile-key region_profiles.msgpack.zst`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := g.startService(ctx)
			if err != nil {
				return err
			}
			defer svc.Stop()

			summary, err := svc.Profiles(ctx)
			if errors.Is(err, selector.ErrEmptyProfileSet) {
				return fmt.Errorf("no profile set at %q", g.cfg.ProfileKey)
			}
			if err != nil {
				return err
			}
			return g.writeResult(cmd, summary)
		},
	}
}
