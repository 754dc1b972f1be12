package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/ingest"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/store"
)

func newSeedCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Post dummy records against private and loopback targets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetUint64("seed")
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}

			cfg, st, err := loadStore(v)
			if err != nil {
				return err
			}
			if _, err := st.EnsureIndex(cmd.Context(), cfg.Index); err != nil {
				return err
			}

			gen := ingest.NewGenerator(seed, time.Now())
			fmt.Fprintf(cmd.OutOrStdout(), "🌱 Seeding %d records (run %s)\n", count, gen.RunID())
			posted, err := postAll(cmd.Context(), cmd.OutOrStdout(), st, cfg.Index, gen.Batch(count))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Posted %d records to %s\n", posted, cfg.Index)
			return nil
		},
	}

	cmd.Flags().Int("count", 10, "Number of records to post")
	cmd.Flags().Uint64("seed", 0, "Random seed (default time based)")
	return cmd
}

// postAll inserts records one by one. Individual failures are logged and
// skipped; an error is returned only if nothing was posted.
func postAll(ctx context.Context, out io.Writer, st store.Store, index string, records []schema.Record) (int, error) {
	posted := 0
	var lastErr error
	for i, rec := range records {
		hit, err := st.Insert(ctx, index, rec)
		if err != nil {
			if ctx.Err() != nil {
				return posted, ctx.Err()
			}
			log.Warnf("record %d (%s %s) not posted: %v", i, rec.TestType, rec.TargetIP, err)
			lastErr = err
			continue
		}
		posted++
		log.Debugf("posted %s %s as %s", rec.Severity, rec.TestType, hit.ID)
	}
	if posted == 0 && lastErr != nil {
		return 0, fmt.Errorf("no records posted: %w", lastErr)
	}
	if failed := len(records) - posted; failed > 0 {
		fmt.Fprintf(out, "⚠️  %d of %d records failed\n", failed, len(records))
	}
	return posted, nil
}
