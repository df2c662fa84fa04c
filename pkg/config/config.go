// Package config loads pipeline configuration via
// github.com/spf13/viper, grounded on iamprashant-voice-ai's
// InitConfig/GetApplicationConfig pattern (viper.New + per-key
// SetDefault + AutomaticEnv + struct Unmarshal). spec.md §6 defines
// the exact key/default table this package implements.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment variable overrides, e.g.
// LIVE_TRANSCRIPTS_MAX_RETRIES=5.
const envPrefix = "LIVE_TRANSCRIPTS"

// Config mirrors spec.md §6's recognized options table exactly; each
// mapstructure tag is the table's key column.
type Config struct {
	SampleRate               int      `mapstructure:"sample_rate"`
	ChunkSize                int      `mapstructure:"chunk_size"`
	BufferDuration           float64  `mapstructure:"buffer_duration"`
	MinBatchDuration         float64  `mapstructure:"min_batch_duration"`
	MaxBatchDuration         float64  `mapstructure:"max_batch_duration"`
	SilenceDurationThreshold float64  `mapstructure:"silence_duration_threshold"`
	BatchOverlap             float64  `mapstructure:"batch_overlap"`
	SilenceThreshold         float64  `mapstructure:"silence_threshold"`
	TranscriptionModel       string   `mapstructure:"transcription_model"`
	ModelFallback            []string `mapstructure:"model_fallback"`
	APITimeout               float64  `mapstructure:"api_timeout"`
	MaxRetries               int      `mapstructure:"max_retries"`
	RetryDelay               float64  `mapstructure:"retry_delay"`
	InsightInterval          float64  `mapstructure:"insight_interval"`
	QuestionUpdateInterval   float64  `mapstructure:"question_update_interval"`
	NumDynamicQuestions      int      `mapstructure:"num_dynamic_questions"`
	ServerHost               string   `mapstructure:"server_host"`
	ServerPort               int      `mapstructure:"server_port"`
}

// APIKeys holds provider credentials discovered from the environment
// (and an optional .env file), unchanged in spirit from the teacher's
// cmd/agent/main.go os.Getenv calls, just gathered in one place.
type APIKeys struct {
	Groq       string
	OpenAI     string
	Anthropic  string
	Google     string
	Deepgram   string
	AssemblyAI string
	Lokutor    string
}

// Load reads configuration from the built-in defaults, an optional
// config file (if present in the working directory), and environment
// variables prefixed LIVE_TRANSCRIPTS_, in increasing precedence order. It also loads a .env file for provider API keys,
// exactly as the teacher's cmd/agent/main.go does — a missing .env is
// not an error, since production deployments set real environment
// variables instead.
func Load() (*Config, APIKeys, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("live-transcripts")
	v.AddConfigPath(".")
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, APIKeys{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, APIKeys{}, err
	}

	return &cfg, loadAPIKeysFromEnv(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sample_rate", 16000)
	v.SetDefault("chunk_size", 1024)
	v.SetDefault("buffer_duration", 10.0)
	v.SetDefault("min_batch_duration", 3.0)
	v.SetDefault("max_batch_duration", 30.0)
	v.SetDefault("silence_duration_threshold", 0.5)
	v.SetDefault("batch_overlap", 0.5)
	v.SetDefault("silence_threshold", 500.0)
	v.SetDefault("transcription_model", "groq")
	v.SetDefault("model_fallback", []string{})
	v.SetDefault("api_timeout", 30.0)
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_delay", 1.0)
	v.SetDefault("insight_interval", 60.0)
	v.SetDefault("question_update_interval", 15.0)
	v.SetDefault("num_dynamic_questions", 4)
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_port", 8765)
}

// loadAPIKeysFromEnv reads provider credentials straight from the
// process environment (populated by godotenv.Load above when a .env
// file is present), matching the teacher's cmd/agent/main.go exactly
// — these are secrets, not tunable pipeline parameters, so they don't
// belong in the viper-managed Config/defaults table above.
func loadAPIKeysFromEnv() APIKeys {
	return APIKeys{
		Groq:       os.Getenv("GROQ_API_KEY"),
		OpenAI:     os.Getenv("OPENAI_API_KEY"),
		Anthropic:  os.Getenv("ANTHROPIC_API_KEY"),
		Google:     os.Getenv("GOOGLE_API_KEY"),
		Deepgram:   os.Getenv("DEEPGRAM_API_KEY"),
		AssemblyAI: os.Getenv("ASSEMBLYAI_API_KEY"),
		Lokutor:    os.Getenv("LOKUTOR_API_KEY"),
	}
}
