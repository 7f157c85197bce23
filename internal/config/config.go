package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultGeometryURL is the Opendatasoft export of the Dutch PC4 polygons.
const DefaultGeometryURL = "https://public.opendatasoft.com/explore/dataset/georef-netherlands-postcode-pc4/download/" +
	"?format=geojson&timezone=Europe/Amsterdam&lang=en"

// Config holds the full application configuration.
type Config struct {
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
	Greenery GreeneryConfig `yaml:"greenery" mapstructure:"greenery"`
	CBS      CBSConfig      `yaml:"cbs" mapstructure:"cbs"`
	Stages   StagesConfig   `yaml:"stages" mapstructure:"stages"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GeometryConfig configures acquisition of the PC4 polygons.
type GeometryConfig struct {
	URL           string   `yaml:"url" mapstructure:"url"`
	CachePath     string   `yaml:"cache_path" mapstructure:"cache_path"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent     string   `yaml:"user_agent" mapstructure:"user_agent"`
	KeyCandidates []string `yaml:"key_candidates" mapstructure:"key_candidates"`
}

// GreeneryConfig describes the coverage-percentage CSV.
type GreeneryConfig struct {
	CSVPath      string `yaml:"csv_path" mapstructure:"csv_path"`
	Delimiter    string `yaml:"delimiter" mapstructure:"delimiter"`
	Decimal      string `yaml:"decimal" mapstructure:"decimal"`
	Encoding     string `yaml:"encoding" mapstructure:"encoding"`
	KeyColumn    string `yaml:"key_column" mapstructure:"key_column"`
	TreesColumn  string `yaml:"trees_column" mapstructure:"trees_column"`
	BushesColumn string `yaml:"bushes_column" mapstructure:"bushes_column"`
	GrassColumn  string `yaml:"grass_column" mapstructure:"grass_column"`
}

// CBSConfig configures the socio-economic spreadsheet join.
type CBSConfig struct {
	XLSXPath           string `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	SheetIndex         int    `yaml:"sheet_index" mapstructure:"sheet_index"`
	PreferredHeaderRow int    `yaml:"preferred_header_row" mapstructure:"preferred_header_row"`
	ScanRows           int    `yaml:"scan_rows" mapstructure:"scan_rows"`
	StructuralRows     []int  `yaml:"structural_rows" mapstructure:"structural_rows"`
	MinColumns         int    `yaml:"min_columns" mapstructure:"min_columns"`
}

// StagesConfig holds the artifact path written by each pipeline stage.
type StagesConfig struct {
	BasePath    string `yaml:"base_path" mapstructure:"base_path"`
	MetricsPath string `yaml:"metrics_path" mapstructure:"metrics_path"`
	CBSPath     string `yaml:"cbs_path" mapstructure:"cbs_path"`
	FinalPath   string `yaml:"final_path" mapstructure:"final_path"`
}

// ServerConfig configures the read-only dataset server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	DataPath       string   `yaml:"data_path" mapstructure:"data_path"`
	StaticDir      string   `yaml:"static_dir" mapstructure:"static_dir"`
	IndexFile      string   `yaml:"index_file" mapstructure:"index_file"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	DataSource     string   `yaml:"data_source" mapstructure:"data_source"`
	DateGenerated  string   `yaml:"date_generated" mapstructure:"date_generated"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GREENSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geometry.url", DefaultGeometryURL)
	v.SetDefault("geometry.cache_path", "data/pc4_nl.geojson")
	v.SetDefault("geometry.timeout_secs", 60)
	v.SetDefault("geometry.user_agent", "greenspace/1.0")
	v.SetDefault("geometry.key_candidates", []string{"postcode", "pc4_code", "pc4", "code", "pc4_cd"})
	v.SetDefault("greenery.csv_path", "PC4_TreesBushesGrass.csv")
	v.SetDefault("greenery.delimiter", ";")
	v.SetDefault("greenery.decimal", ",")
	v.SetDefault("greenery.encoding", "utf-8")
	v.SetDefault("greenery.key_column", "Postcode")
	v.SetDefault("greenery.trees_column", "PercentageTrees")
	v.SetDefault("greenery.bushes_column", "PercentageBushes")
	v.SetDefault("greenery.grass_column", "PercentageGrass")
	v.SetDefault("cbs.xlsx_path", "data/pc4_2024_v1.xlsx")
	v.SetDefault("cbs.sheet_index", 0)
	v.SetDefault("cbs.preferred_header_row", 7)
	v.SetDefault("cbs.scan_rows", 10)
	v.SetDefault("cbs.structural_rows", []int{3, 4, 5, 6, 8})
	v.SetDefault("cbs.min_columns", 5)
	v.SetDefault("stages.base_path", "data/merged_green_space_base.geojson")
	v.SetDefault("stages.metrics_path", "data/green_space_with_metrics.geojson")
	v.SetDefault("stages.cbs_path", "data/green_space_with_cbs.geojson")
	v.SetDefault("stages.final_path", "data/processed_green_space_advanced.geojson")
	v.SetDefault("server.port", 5010)
	v.SetDefault("server.data_path", "data/processed_green_space_advanced.geojson")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.index_file", "index.html")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.data_source", "CBS Netherlands + Dutch Green Space Analysis")
	v.SetDefault("server.date_generated", "2025")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks that the configuration is usable for the given mode
// ("pipeline" or "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "pipeline":
		if c.Geometry.CachePath == "" {
			errs = append(errs, "geometry.cache_path is required")
		}
		if len(c.Geometry.KeyCandidates) == 0 {
			errs = append(errs, "geometry.key_candidates must not be empty")
		}
		if c.Greenery.KeyColumn == "" {
			errs = append(errs, "greenery.key_column is required")
		}
		if len([]rune(c.Greenery.Delimiter)) != 1 {
			errs = append(errs, "greenery.delimiter must be a single character")
		}
		if c.CBS.ScanRows < 1 {
			errs = append(errs, "cbs.scan_rows must be >= 1")
		}
		if c.CBS.PreferredHeaderRow < 0 {
			errs = append(errs, "cbs.preferred_header_row must be >= 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.DataPath == "" {
			errs = append(errs, "server.data_path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
