// Package config holds the settings of the recommender CLI.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/spigell/internship-recommender/internal/apperr"
	"github.com/spigell/internship-recommender/internal/filtering"
	"github.com/spigell/internship-recommender/internal/forest"
	"github.com/spigell/internship-recommender/internal/recommender"
	"github.com/spigell/internship-recommender/internal/rules"
	"github.com/spigell/internship-recommender/internal/training"
)

const EnvPrefix = "INTERNREC"

type Config struct {
	Datasets  *Datasets  `mapstructure:"datasets" validate:"required"`
	ModelsDir string     `mapstructure:"models-dir" validate:"required"`
	Rules     *Rules     `mapstructure:"rules" validate:"required"`
	Ranking   *Ranking   `mapstructure:"ranking" validate:"required"`
	Training  *Training  `mapstructure:"training" validate:"required"`
	Recommend *Recommend `mapstructure:"recommend" validate:"required"`
}

// Datasets points either to the two CSV files or to one SQLite database.
type Datasets struct {
	Internships string `mapstructure:"internships" validate:"required_without=SQLite"`
	Resumes     string `mapstructure:"resumes" validate:"required_without=SQLite"`
	SQLite      string `mapstructure:"sqlite"`
}

type Rules struct {
	MinSupport float64 `mapstructure:"min-support" validate:"gt=0,lte=1"`
	MinLift    float64 `mapstructure:"min-lift" validate:"gte=0"`
	MaxLen     int     `mapstructure:"max-len" validate:"gte=0"`
}

type Ranking struct {
	Trees           int    `mapstructure:"trees" validate:"gt=0"`
	MaxDepth        int    `mapstructure:"max-depth" validate:"gte=0"`
	MinSamplesSplit int    `mapstructure:"min-samples-split" validate:"gte=2"`
	MinSamplesLeaf  int    `mapstructure:"min-samples-leaf" validate:"gte=1"`
	Seed            uint64 `mapstructure:"seed"`
	Workers         int    `mapstructure:"workers" validate:"gte=0"`
}

type Training struct {
	MaxSamplesPerResume int     `mapstructure:"max-samples-per-resume" validate:"gt=0"`
	LabelThreshold      float64 `mapstructure:"label-threshold" validate:"gt=0,lte=1"`
}

type Recommend struct {
	TopN             int      `mapstructure:"top-n" validate:"gte=0"`
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	Locations        []string `mapstructure:"locations"`
	// MaxExperience below zero turns the experience filter off.
	MaxExperience float64 `mapstructure:"max-experience"`
	// SkipFilters disables configured filters by name for one run.
	SkipFilters []string `mapstructure:"skip-filters" validate:"dive,oneof=exclude_companies locations max_experience"`
}

// SetDefaults registers every key so env overrides work without a config file.
func SetDefaults(v *viper.Viper) {
	rulesDefaults := rules.DefaultParams()
	forestDefaults := forest.DefaultParams()
	trainingDefaults := training.DefaultOptions()

	v.SetDefault("datasets.internships", "internships.csv")
	v.SetDefault("datasets.resumes", "resumes.csv")
	v.SetDefault("datasets.sqlite", "")
	v.SetDefault("models-dir", "models")

	v.SetDefault("rules.min-support", rulesDefaults.MinSupport)
	v.SetDefault("rules.min-lift", rulesDefaults.MinLift)
	v.SetDefault("rules.max-len", rulesDefaults.MaxLen)

	v.SetDefault("ranking.trees", forestDefaults.Trees)
	v.SetDefault("ranking.max-depth", forestDefaults.MaxDepth)
	v.SetDefault("ranking.min-samples-split", forestDefaults.MinSamplesSplit)
	v.SetDefault("ranking.min-samples-leaf", forestDefaults.MinSamplesLeaf)
	v.SetDefault("ranking.seed", forestDefaults.Seed)
	v.SetDefault("ranking.workers", 0)

	v.SetDefault("training.max-samples-per-resume", trainingDefaults.MaxPerResume)
	v.SetDefault("training.label-threshold", trainingDefaults.LabelThreshold)

	v.SetDefault("recommend.top-n", recommender.DefaultTopN)
	v.SetDefault("recommend.exclude-companies", []string{})
	v.SetDefault("recommend.locations", []string{})
	v.SetDefault("recommend.max-experience", -1.0)
	v.SetDefault("recommend.skip-filters", []string{})
}

// BindEnv maps INTERNREC_RANKING_TREES style variables onto config keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg *Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "decode config: %v", err)
	}
	if cfg == nil {
		return nil, apperr.New(apperr.ErrInvalidInput, "config is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Newf(apperr.ErrInvalidInput, "validate config: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return apperr.New(apperr.ErrInvalidInput, "config validation failed: "+strings.Join(msgs, "; "))
}

func (c *Config) RecommenderOptions() recommender.Options {
	return recommender.Options{
		Rules: rules.Params{
			MinSupport: c.Rules.MinSupport,
			MinLift:    c.Rules.MinLift,
			MaxLen:     c.Rules.MaxLen,
		},
		Forest: forest.Params{
			Trees:           c.Ranking.Trees,
			MaxDepth:        c.Ranking.MaxDepth,
			MinSamplesSplit: c.Ranking.MinSamplesSplit,
			MinSamplesLeaf:  c.Ranking.MinSamplesLeaf,
			Seed:            c.Ranking.Seed,
			Workers:         c.Ranking.Workers,
		},
		Training: training.Options{
			MaxPerResume:   c.Training.MaxSamplesPerResume,
			LabelThreshold: c.Training.LabelThreshold,
		},
	}
}

// Filters builds the post-ranking filter steps. Unset and skipped filters
// come back disabled.
func (c *Config) Filters() []filtering.Filter {
	steps := []filtering.Filter{
		filtering.NewExcludedCompanies(c.Recommend.ExcludeCompanies),
		filtering.NewLocations(c.Recommend.Locations),
		filtering.NewMaxExperience(c.Recommend.MaxExperience),
	}
	for _, name := range c.Recommend.SkipFilters {
		filtering.DisableByName(steps, name, "skipped by configuration")
	}
	return steps
}
