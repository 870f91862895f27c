/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package protocol

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:     "check",
	Short:   "check command",
	Long:    "check fetches a single item from the configured source and opens the configured store",
	PreRunE: requireConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		err := check(cmd)

		message := types.Message{
			Type: types.ConnectionStatusMessage,
			ConnectionStatus: &types.StatusRow{
				Status: types.ConnectionSucceed,
			},
		}
		if err != nil {
			message.ConnectionStatus.Message = err.Error()
			message.ConnectionStatus.Status = types.ConnectionFailed
		}
		return emit(cmd.OutOrStdout(), message)
	},
}

// check tries the source with a single-item batch against a memory store
// and opens the configured store concurrently; the first failure is returned.
func check(cmd *cobra.Command) error {
	checkSource := func(ctx context.Context) error {
		trial := *config
		trial.BatchSize = 1
		trial.Store = types.StoreConfig{Type: constants.MemoryStore}

		job, err := buildRunner(ctx, &trial, nil)
		if err != nil {
			return err
		}
		defer job.Close()

		_, err = job.RunSingleBatch(ctx)
		return err
	}

	checkStore := func(ctx context.Context) error {
		_, _, closeStore, err := openStore[map[string]any](ctx, config.Store, "check")
		if err != nil {
			return err
		}
		return closeStore()
	}

	return utils.ErrExec(cmd.Context(), checkSource, checkStore)
}
