package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/regionsel/internal/adapters/blobstore/provider"
	"github.com/okian/regionsel/internal/adapters/transfer"
)

type mirrorFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type mirrorResult struct {
	Copied   int             `json:"copied"`
	Folders  int             `json:"folders"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Bytes    int             `json:"bytes"`
	Failures []mirrorFailure `json:"failures"`
}

func newMirrorCmd(g *globals) *cobra.Command {
	var (
		dst       provider.Config
		srcPrefix string
		dstPrefix string
		include   string
	)

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy objects from the configured store to another store",
		Long: `Copy every object under --from to the same relative name under --to in
the destination store. Folder placeholder keys ending in "/" are not copied.
Concurrency and rate follow transfer_concurrency and transfer_rate.

Examples:
  regionctl mirror --from embeddings/ --dst-kind local --dst-root ./data
  regionctl mirror --from embeddings/ --to backup/embeddings/ \
    --dst-kind minio --dst-endpoint localhost:9000 --dst-bucket archive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			src, err := provider.Open(ctx, g.cfg.StoreProvider())
			if err != nil {
				return fmt.Errorf("source store: %w", err)
			}
			target, err := provider.Open(ctx, dst)
			if err != nil {
				return fmt.Errorf("destination store: %w", err)
			}

			opts := []transfer.Option{
				transfer.WithConcurrency(g.cfg.TransferConcurrency),
				transfer.WithRate(g.cfg.TransferRate),
				transfer.WithLogger(g.log.Named("transfer")),
			}
			if include != "" {
				opts = append(opts, transfer.WithFilter(func(key string) bool {
					return strings.Contains(key, include)
				}))
			}

			if dstPrefix == "" {
				dstPrefix = srcPrefix
			}
			report, err := transfer.New(src, target, opts...).Copy(ctx, srcPrefix, dstPrefix)
			if err != nil {
				return err
			}

			result := mirrorResult{
				Copied:   report.Count(transfer.OutcomeCopied),
				Folders:  report.Count(transfer.OutcomeFolder),
				Skipped:  report.Count(transfer.OutcomeSkipped),
				Failed:   report.Count(transfer.OutcomeFailed),
				Failures: []mirrorFailure{},
			}
			for _, r := range report.Results {
				result.Bytes += r.Bytes
			}
			for _, r := range report.Failed() {
				result.Failures = append(result.Failures, mirrorFailure{Source: r.Source, Error: r.Err.Error()})
			}
			if err := g.writeResult(cmd, result); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d objects failed to copy", result.Failed, len(report.Results))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&srcPrefix, "from", "", "Source prefix")
	f.StringVar(&dstPrefix, "to", "", "Destination prefix (defaults to --from)")
	f.StringVar(&include, "include", "", "Copy only keys containing this substring")
	f.StringVar(&dst.Kind, "dst-kind", provider.KindLocal, "Destination store kind: memory, local, s3 or minio")
	f.StringVar(&dst.Root, "dst-root", "", "Destination directory for a local store")
	f.StringVar(&dst.Bucket, "dst-bucket", "", "Destination bucket")
	f.StringVar(&dst.Prefix, "dst-prefix", "", "Key prefix inside the destination bucket")
	f.StringVar(&dst.Region, "dst-region", "", "Destination S3 region")
	f.StringVar(&dst.Endpoint, "dst-endpoint", "", "Destination endpoint")
	f.StringVar(&dst.AccessKey, "dst-access-key", "", "Destination access key")
	f.StringVar(&dst.SecretKey, "dst-secret-key", "", "Destination secret key")
	f.BoolVar(&dst.UseSSL, "dst-use-ssl", true, "Use TLS for the destination endpoint")
	return cmd
}
