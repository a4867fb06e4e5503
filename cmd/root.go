package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/artifact"
	"github.com/spigell/internship-recommender/internal/config"
	"github.com/spigell/internship-recommender/internal/dataset"
	"github.com/spigell/internship-recommender/internal/logger"
	"github.com/spigell/internship-recommender/internal/recommender"
)

const (
	app = "internship-recommender"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "internship-recommender ranks internships against a list of skills",
		// Errors are logged by the commands themselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

// Execute executes the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return apperr.ExitCode(err)
	}
	return apperr.ExitOK
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is internship-recommender.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("models-dir", "", "directory with trained artifacts")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("models-dir", rootCmd.PersistentFlags().Lookup("models-dir"))
}

func initConfig() {
	// A missing .env is fine; it only supplements the environment.
	_ = godotenv.Load()

	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Defaults are enough to run unless a config was asked for explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// setup builds the logger, config and recommender shared by the commands.
func setup(ctx context.Context) (*zap.Logger, *config.Config, *recommender.Recommender, error) {
	logger, err := logger.New(app, viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Printf("creating a logger: %s", err)
		return nil, nil, nil, err
	}

	cfg, err := getConfig()
	if err != nil {
		logger.Error("getting a config", zap.Error(err))
		return logger, nil, nil, err
	}

	logger.Debug("starting with config", zap.Any("config", cfg))

	bundle, err := loadBundle(ctx, cfg)
	if err != nil {
		logger.Error("loading datasets", zap.Error(err))
		return logger, cfg, nil, err
	}

	logger.Info("datasets loaded",
		zap.Int("internships", bundle.Internships.Len()),
		zap.Int("resumes", len(bundle.Resumes)),
	)

	store := artifact.NewStore(dataset.ResolvePath(cfg.ModelsDir))
	rec := recommender.New(bundle, store, cfg.RecommenderOptions(), logger)

	return logger, cfg, rec, nil
}

func loadBundle(ctx context.Context, cfg *config.Config) (*dataset.Bundle, error) {
	if cfg.Datasets.SQLite != "" {
		return dataset.LoadSQLite(ctx, dataset.ResolvePath(cfg.Datasets.SQLite))
	}
	return dataset.LoadCSV(
		dataset.ResolvePath(cfg.Datasets.Internships),
		dataset.ResolvePath(cfg.Datasets.Resumes),
	)
}
