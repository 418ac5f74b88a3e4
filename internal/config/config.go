// Package config loads the YAML configuration that parameterizes the
// mutation pipeline, the bandit scheduler, and the per-role LLM endpoints.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LLMEndpoint is one role's connection details (§6: LLM_PARSER,
// LLM_MUTATOR_GENERATOR, LLM_STRUCTURAL_MUTATOR, LLM_FIXER each get one).
type LLMEndpoint struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

// Target describes the opaque DBMS identity used only for prompt
// construction; the core never interprets these strings.
type Target struct {
	DBMS        string `mapstructure:"dbms"`
	DBMSVersion string `mapstructure:"dbms_version"`
}

// Others carries the miscellaneous knobs named directly in spec.md §6.
type Others struct {
	FixMutatorTryTime        int `mapstructure:"fix_mutator_try_time"`
	SemanticFixMaxTime       int `mapstructure:"semantic_fix_max_time"`
	TimesToStructuralMutator int `mapstructure:"times_to_structural_mutator"`

	ParserThreadCount            int `mapstructure:"parser_thread_count"`
	MutatorGeneratorThreadCount  int `mapstructure:"mutator_generator_thread_count"`
	StructuralMutatorThreadCount int `mapstructure:"structural_mutator_thread_count"`
	FixerThreadCount             int `mapstructure:"fixer_thread_count"`

	LLMFormatErrorMaxRetry int `mapstructure:"llm_format_error_max_retry"`
	SyntaxErrorMaxRetry    int `mapstructure:"syntax_error_max_retry"`
}

// Energy holds the pool-sample energy clip parameters (§4.1).
type Energy struct {
	ExchangeRate float64 `mapstructure:"exchange_rate"`
	MinEnergy    int     `mapstructure:"min_energy"`
	MaxEnergy    int     `mapstructure:"max_energy"`
}

// Queues holds the bounded-channel capacities for the pipeline (§4.3).
type Queues struct {
	ParseCapacity           int `mapstructure:"parse_capacity"`
	GenerateCapacity        int `mapstructure:"generate_capacity"`
	FixCapacity             int `mapstructure:"fix_capacity"`
	StructuralCapacity      int `mapstructure:"structural_capacity"`
	ReadyCapacity           int `mapstructure:"ready_capacity"`
	StructuralReadyCapacity int `mapstructure:"structural_ready_capacity"`
	ParserStackDepth        int `mapstructure:"parser_stack_depth"`
}

// Bitmap holds the shared-memory and persistence settings (§4.6).
type Bitmap struct {
	MapSize          int           `mapstructure:"map_size"`
	ShmEnvVar        string        `mapstructure:"shm_env_var"`
	PersistDir       string        `mapstructure:"persist_dir"`
	PersistInterval  time.Duration `mapstructure:"persist_interval"`
}

// CrashLibrary holds the two example directories (§4.7).
type CrashLibrary struct {
	DynamicDir string `mapstructure:"dynamic_dir"`
	StaticDir  string `mapstructure:"static_dir"`
}

// FilePaths holds the on-disk artifact locations (§6 Persisted files).
type FilePaths struct {
	ParsedSeedDir    string `mapstructure:"parsed_seed_dir"`
	MutatorDir       string `mapstructure:"mutator_dir"`
	StructuralDir    string `mapstructure:"structural_dir"`
}

// CSVPaths holds the per-stage event log paths (§6).
type CSVPaths struct {
	ParserPath            string `mapstructure:"parser_path"`
	MutatorGeneratorPath  string `mapstructure:"mutator_generator_path"`
	MutatorFixerPath      string `mapstructure:"mutator_fixer_path"`
	StructuralMutatorPath string `mapstructure:"structural_mutator_path"`
	MainPath              string `mapstructure:"main_path"`
}

// LLM groups the four role-scoped endpoints.
type LLM struct {
	Parser            LLMEndpoint `mapstructure:"llm_parser"`
	MutatorGenerator  LLMEndpoint `mapstructure:"llm_mutator_generator"`
	StructuralMutator LLMEndpoint `mapstructure:"llm_structural_mutator"`
	Fixer             LLMEndpoint `mapstructure:"llm_fixer"`
}

// Config is the fully-resolved configuration for one fuzzing session.
type Config struct {
	Target       Target       `mapstructure:"target"`
	Others       Others       `mapstructure:"others"`
	Energy       Energy       `mapstructure:"energy"`
	Queues       Queues       `mapstructure:"queues"`
	Bitmap       Bitmap       `mapstructure:"bitmap"`
	CrashLibrary CrashLibrary `mapstructure:"crash_library"`
	Files        FilePaths    `mapstructure:"files"`
	CSV          CSVPaths     `mapstructure:"csv"`
	LLM          LLM          `mapstructure:"llm"`
}

// defaults mirrors the fallback values the original factory applies when a
// key is absent from the YAML document (PARSER_THREAD_COUNT defaulting to
// 1, LLM_FORMAT_ERROR_MAX_RETRY defaulting to 5, and so on).
func setDefaults(v *viper.Viper) {
	v.SetDefault("others.parser_thread_count", 1)
	v.SetDefault("others.mutator_generator_thread_count", 1)
	v.SetDefault("others.structural_mutator_thread_count", 1)
	v.SetDefault("others.fixer_thread_count", 1)
	v.SetDefault("others.llm_format_error_max_retry", 5)
	v.SetDefault("others.syntax_error_max_retry", 5)
	v.SetDefault("others.semantic_fix_max_time", 3)
	v.SetDefault("others.times_to_structural_mutator", 5)
	v.SetDefault("others.fix_mutator_try_time", 5)

	v.SetDefault("energy.exchange_rate", 20.0)
	v.SetDefault("energy.min_energy", 1)
	v.SetDefault("energy.max_energy", 64)

	v.SetDefault("queues.parse_capacity", 64)
	v.SetDefault("queues.generate_capacity", 64)
	v.SetDefault("queues.fix_capacity", 64)
	v.SetDefault("queues.structural_capacity", 16)
	v.SetDefault("queues.ready_capacity", 4096)
	v.SetDefault("queues.structural_ready_capacity", 256)
	v.SetDefault("queues.parser_stack_depth", 32)

	v.SetDefault("bitmap.map_size", 65536)
	v.SetDefault("bitmap.persist_interval", 5*time.Second)

	// Empty defaults make the endpoint keys known to viper, so their
	// DBFUZZ_ environment overrides reach Unmarshal.
	for _, role := range []string{"llm_parser", "llm_mutator_generator", "llm_structural_mutator", "llm_fixer"} {
		for _, field := range []string{"base_url", "model", "api_key"} {
			v.SetDefault("llm."+role+"."+field, "")
		}
	}
}

// Load reads the YAML file at path, overlaying environment variables
// prefixed DBFUZZ_ (e.g. DBFUZZ_LLM_LLM_FIXER_API_KEY overrides
// llm.llm_fixer.api_key), the same override convention the teacher's
// config package applies to its own settings. Only keys that have a
// default or appear in the YAML file are looked up in the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DBFUZZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations that would make the pipeline meaningless
// (zero-size bitmap, inverted energy range, etc.). It does not attempt to
// validate LLM credentials — that failure surfaces naturally on first call.
func (c *Config) Validate() error {
	if c.Bitmap.MapSize <= 0 || c.Bitmap.MapSize&(c.Bitmap.MapSize-1) != 0 {
		return fmt.Errorf("bitmap.map_size must be a power of two, got %d", c.Bitmap.MapSize)
	}
	if c.Energy.MinEnergy < 0 || c.Energy.MaxEnergy < c.Energy.MinEnergy {
		return fmt.Errorf("energy.min_energy/max_energy invalid: min=%d max=%d", c.Energy.MinEnergy, c.Energy.MaxEnergy)
	}
	if c.Others.TimesToStructuralMutator <= 0 {
		return fmt.Errorf("others.times_to_structural_mutator must be positive")
	}
	return nil
}
