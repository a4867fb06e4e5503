package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the association rules and the ranking model and store them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return train(cmd)
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().BoolP("force", "f", false, "retrain even when stored artifacts are valid")
	trainCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before overwriting artifacts")
}

func train(cmd *cobra.Command) error {
	ctx := context.Background()

	logger, _, rec, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	force, _ := cmd.Flags().GetBool("force")
	approved, _ := cmd.Flags().GetBool("auto-approve")

	if force && !approved {
		confirm := promptui.Select{
			Label: "Overwrite stored artifacts?",
			Items: []string{PromptYes, PromptNo},
		}
		_, answer, err := confirm.Run()
		if err != nil {
			logger.Error("exiting", zap.Error(err))
			return err
		}
		if answer != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return nil
		}
	}

	logger.Info("starting the training", zap.String("version", version), zap.Bool("force", force))

	summary, err := rec.Train(force)
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		return err
	}

	pretty, err := json.MarshalIndent(summary.Map(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	logger.Info("training finished", zap.String("snapshot_id", summary.SnapshotID))
	fmt.Println(string(pretty))

	return nil
}
