package protocol

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/streamcatchup/telemetry"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

// runCmd catches every projection up with the source once and prints them
var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "run command",
	Long:    "run fetches batches until the source is drained, then prints the cursor and projections",
	PreRunE: requireConfig,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		job, err := buildRunner(cmd.Context(), config, telemetry.New())
		if err != nil {
			return err
		}
		defer func() {
			err = utils.ErrExecSequential(func() error { return err }, job.Close)
		}()

		cursor, err := job.RunUntilCaughtUp(cmd.Context())
		if err != nil {
			return fmt.Errorf("catch-up of stream[%s] failed at cursor[%s]: %w", job.StreamID(), cursor, err)
		}
		logger.Infof("stream[%s] caught up at cursor[%s]", job.StreamID(), cursor)

		projections, err := job.Projections(cmd.Context())
		if err != nil {
			return err
		}
		if path, err := logger.LogResult("projections", projections); err != nil {
			logger.Warnf("failed to save projections: %s", err)
		} else if path != "" {
			logger.Infof("projections saved to %s", path)
		}

		return emit(cmd.OutOrStdout(), types.Message{
			Type:        types.ProjectionMessage,
			Stream:      job.StreamID(),
			Cursor:      cursor,
			Projections: projections,
		})
	},
}
