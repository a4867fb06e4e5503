package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/filtering"
	"github.com/spigell/internship-recommender/internal/logger"
	"github.com/spigell/internship-recommender/internal/recommender"
)

const (
	PromptYes               = "Yes"
	PromptNo                = "No"
	PromptBack              = "back"
	PromptDetails           = "Show internship details"
	PromptReportByCompanies = "Report by companies"
	PromptToFile            = "Dump recommendations to file"
	PromptExit              = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptDetails, PromptReportByCompanies, PromptToFile, PromptExit},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend [skills...]",
	Short: "Recommend internships for a comma separated list of skills",
	Example: `  internship-recommender recommend "python, sql"
  internship-recommender recommend -n 10 -i go docker`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return recommend(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().IntP("top-n", "n", recommender.DefaultTopN, "number of internships to return")
	recommendCmd.Flags().BoolP("interactive", "i", false, "browse the results interactively")
	recommendCmd.Flags().StringSlice("exclude-companies", nil, "companies to drop from the results")
	recommendCmd.Flags().StringSlice("locations", nil, "keep only internships in these locations")
	recommendCmd.Flags().Float64("max-experience", -1, "drop internships asking for more years of experience")
	recommendCmd.Flags().StringSlice("skip-filter", nil, "disable configured filters by name (exclude_companies, locations, max_experience)")

	viper.BindPFlag("recommend.top-n", recommendCmd.Flags().Lookup("top-n"))
	viper.BindPFlag("recommend.exclude-companies", recommendCmd.Flags().Lookup("exclude-companies"))
	viper.BindPFlag("recommend.locations", recommendCmd.Flags().Lookup("locations"))
	viper.BindPFlag("recommend.max-experience", recommendCmd.Flags().Lookup("max-experience"))
	viper.BindPFlag("recommend.skip-filters", recommendCmd.Flags().Lookup("skip-filter"))
}

func recommend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	input := strings.Join(args, ",")
	if strings.TrimSpace(input) == "" {
		return apperr.New(apperr.ErrInputEmpty, "pass skills as arguments, for example: recommend \"python, sql\"")
	}

	logger, cfg, rec, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	steps := cfg.Filters()
	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.Any("details", status.Details),
		)
	}

	recs, err := rec.Recommend(input, cfg.Recommend.TopN, steps...)
	if err != nil {
		logger.Error("recommending failed", zap.Error(err))
		return err
	}

	results := recommender.Recommendations(recs)
	if results.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no internships matched"))
		return nil
	}

	logger.Info("internships recommended", zap.Int("count", results.Len()))

	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive {
		pretty, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encode recommendations: %w", err)
		}
		fmt.Println(string(pretty))
		return nil
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Error("exiting", zap.Error(err))
			return err
		}

		if err := handleAction(action, logger, results); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			logger.Error("exiting", zap.Error(err))
			return err
		}
	}
}

func handleAction(action string, logger *zap.Logger, results recommender.Recommendations) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptDetails:
		return browse(logger, results)
	case PromptReportByCompanies:
		pretty, _ := json.MarshalIndent(results.ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("internships count", results.Len()))
		return nil
	case PromptToFile:
		filename, err := results.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// browse lets the user pick one recommendation at a time until they go back.
func browse(log *zap.Logger, results recommender.Recommendations) error {
	items := make([]string, 0, results.Len()+1)
	for i, rec := range results {
		items = append(items, fmt.Sprintf("%d. %s / %s / %.2f%%", i+1, rec.InternshipTitle, rec.Company, rec.MatchPercentage))
	}
	items = append(items, PromptBack)

	for {
		selector := promptui.Select{
			Label: "Choose an internship and press ENTER",
			Items: items,
			Size:  10,
		}

		idx, selected, err := selector.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		rec := results[idx]
		log.Debug("internship selected", logger.InternshipFields(rec.InternshipTitle, rec.Company)...)

		pretty, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("encode internship: %w", err)
		}
		fmt.Println(string(pretty))
	}
}
