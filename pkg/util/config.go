package util

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lintang-b-s/osmroadlength/pkg"
	"github.com/spf13/viper"
)

func ReadConfig(dir string) error {
	viper.SetConfigName("config")
	viper.AddConfigPath(dir)
	viper.SetEnvPrefix("ROADLENGTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("road_classes", pkg.DefaultRoadClasses)
	viper.SetDefault("input_pattern", "./data/{year}/road/{city}_osm_road.csv")
	viper.SetDefault("output_dir", "./data/output")
	viper.SetDefault("workers", 0)
	viper.SetDefault("length_method", "haversine")
	viper.SetDefault("table_cache_size", 64)
	viper.SetDefault("thresholds.centroid_distance", 0.001)
	viper.SetDefault("thresholds.min_distance", 0.0003)
	viper.SetDefault("thresholds.parallel_tolerance", 0.01)
	viper.SetDefault("thresholds.index_box_size", 0.001)

	viper.SetDefault("analyses.connectivity", false)
	viper.SetDefault("analyses.connectivity_classes", pkg.ConnectivityRoadClasses)
	viper.SetDefault("analyses.connectivity_merge", map[string]string{
		"trunk":   "motorway",
		"service": "residential",
	})
	viper.SetDefault("analyses.parallel", false)
	viper.SetDefault("analyses.parallel_classes", pkg.DefaultRoadClasses)
	viper.SetDefault("analyses.alignment_tolerance", pkg.ALIGNMENT_TOLERANCE)
}

type Thresholds struct {
	CentroidDistance  float64 `mapstructure:"centroid_distance" validate:"gt=0"`
	MinDistance       float64 `mapstructure:"min_distance" validate:"gt=0"`
	ParallelTolerance float64 `mapstructure:"parallel_tolerance" validate:"gt=0,lt=1"`
	IndexBoxSize      float64 `mapstructure:"index_box_size" validate:"gt=0"`
}

// Analyses. per-city network analyses, both off by default.
type Analyses struct {
	Connectivity        bool              `mapstructure:"connectivity"`
	ConnectivityClasses []string          `mapstructure:"connectivity_classes" validate:"max=64,dive,required"`
	ConnectivityMerge   map[string]string `mapstructure:"connectivity_merge"`
	Parallel            bool              `mapstructure:"parallel"`
	ParallelClasses     []string          `mapstructure:"parallel_classes" validate:"dive,required"`
	AlignmentTolerance  float64           `mapstructure:"alignment_tolerance" validate:"gt=0,lt=1"`
}

// RunConfig holds everything one batch run over (year, city, road class) needs.
type RunConfig struct {
	Years          []int      `mapstructure:"years" validate:"required,min=1,dive,gt=0"`
	Cities         []string   `mapstructure:"cities" validate:"required,min=1,dive,required"`
	RoadClasses    []string   `mapstructure:"road_classes" validate:"required,min=1,dive,required"`
	InputPattern   string     `mapstructure:"input_pattern" validate:"required"`
	OutputDir      string     `mapstructure:"output_dir" validate:"required"`
	Workers        int        `mapstructure:"workers" validate:"gte=0"`
	LengthMethod   string     `mapstructure:"length_method" validate:"oneof=haversine s2 vincenty"`
	TableCacheSize int        `mapstructure:"table_cache_size" validate:"gt=0"`
	Thresholds     Thresholds `mapstructure:"thresholds"`
	Analyses       Analyses   `mapstructure:"analyses"`
}

// LoadRunConfig maps the viper keys (config file, env, defaults) into a validated RunConfig.
func LoadRunConfig() (*RunConfig, error) {
	var cfg RunConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, WrapErrorf(err, ErrBadParamInput, "can't decode run config")
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, WrapErrorf(err, ErrBadParamInput, "invalid run config")
	}
	return &cfg, nil
}
