package config

import "time"

// Config represents the main application configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Model      ModelConfig      `yaml:"model"`
	Tools      ToolsConfig      `yaml:"tools"`
	Planner    PlannerConfig    `yaml:"planner"`
	Complexity ComplexityConfig `yaml:"complexity"`
	Session    SessionConfig    `yaml:"session"`
	Validation ValidationConfig `yaml:"validation"`
	History    HistoryConfig    `yaml:"history"`
	Logging    LoggingConfig    `yaml:"logging"`
	Watcher    WatcherConfig    `yaml:"watcher"`

	// Runtime version information
	Version string `yaml:"-"`
}

// APIConfig holds API-related settings.
type APIConfig struct {
	GeminiKey     string `yaml:"gemini_key,omitempty"`
	OllamaBaseURL string `yaml:"ollama_base_url,omitempty"` // default: http://localhost:11434
	OllamaKey     string `yaml:"ollama_key,omitempty"`      // optional, for remote Ollama servers

	// RequestsPerMinute paces remote API calls; 0 disables pacing.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig holds retry settings for API calls.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`  // default: 3
	RetryDelay  time.Duration `yaml:"retry_delay"`  // default: 1s
	HTTPTimeout time.Duration `yaml:"http_timeout"` // default: 120s
}

// ModelConfig maps model-routing tiers to concrete model names.
type ModelConfig struct {
	Remote     string `yaml:"remote"`               // REMOTE tier (Gemini)
	Local      string `yaml:"local"`                // LOCAL tier (Ollama), empty disables the tier
	Validation string `yaml:"validation,omitempty"` // dedicated validation model, empty = use remote

	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// ToolsConfig holds tool-related settings.
type ToolsConfig struct {
	ProcessTimeout  time.Duration `yaml:"process_timeout"`  // per-command timeout for run_process
	TrustedCommands []string      `yaml:"trusted_commands"` // command prefixes that skip approval
	MaxReadBytes    int64         `yaml:"max_read_bytes"`   // max file size for read_files
	MaxOutputChars  int           `yaml:"max_output_chars"` // truncation limit for tool output
}

// PlannerConfig holds task planner settings.
type PlannerConfig struct {
	MaxTurns    int           `yaml:"max_turns"`    // cap on planning turn-loop iterations
	PrePlanning bool          `yaml:"pre_planning"` // best-effort digest pass with the local model
	Timeout     time.Duration `yaml:"timeout"`      // overall planning timeout
	ScanDepth   int           `yaml:"scan_depth"`   // directory scan depth for context profiles
}

// ComplexityConfig holds the assessor weights and thresholds.
type ComplexityConfig struct {
	Weights    ComplexityWeights    `yaml:"weights"`
	Thresholds ComplexityThresholds `yaml:"thresholds"`
}

// ComplexityWeights are the factor weights for the weighted score sum.
type ComplexityWeights struct {
	TaskType     float64 `yaml:"task_type"`
	ScopeSize    float64 `yaml:"scope_size"`
	Dependencies float64 `yaml:"dependencies"`
	Technology   float64 `yaml:"technology"`
	PriorSuccess float64 `yaml:"prior_success"`
}

// ComplexityThresholds map score to level: >= High is HIGH, >= Medium is MEDIUM.
type ComplexityThresholds struct {
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

// SessionConfig holds session state-machine settings.
type SessionConfig struct {
	RetryBackoff    time.Duration `yaml:"retry_backoff"`     // delay before re-entering the same state
	MaxStateRetries int           `yaml:"max_state_retries"` // 0 = unbounded
	AutoApprove     bool          `yaml:"auto_approve"`      // skip interactive approval gates
}

// ValidationConfig holds validation engine settings.
type ValidationConfig struct {
	AutoCommands   []string      `yaml:"auto_commands"`   // trusted commands run before the LLM verdict
	CommandTimeout time.Duration `yaml:"command_timeout"` // per-command timeout
	MaxTurns       int           `yaml:"max_turns"`       // cap on verdict turn-loop iterations
}

// HistoryConfig holds the completed-plan history log settings.
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"` // most recent N completed plans kept
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// WatcherConfig holds workspace watcher settings.
type WatcherConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			OllamaBaseURL:     "http://localhost:11434",
			RequestsPerMinute: 60,
			Retry: RetryConfig{
				MaxRetries:  3,
				RetryDelay:  1 * time.Second,
				HTTPTimeout: 120 * time.Second,
			},
		},
		Model: ModelConfig{
			Remote:          "gemini-3-flash-preview",
			Local:           "", // LOCAL tier disabled unless configured
			Temperature:     1.0,
			MaxOutputTokens: 8192,
		},
		Tools: ToolsConfig{
			ProcessTimeout: 2 * time.Minute,
			TrustedCommands: []string{
				"go build", "go vet", "go test",
				"git status", "git diff", "git log",
				"ls", "cat", "grep",
				"npm test", "npm run build",
				"cargo check", "cargo test",
				"pytest",
			},
			MaxReadBytes:   512 * 1024,
			MaxOutputChars: 30000,
		},
		Planner: PlannerConfig{
			MaxTurns:    25,
			PrePlanning: true,
			Timeout:     5 * time.Minute,
			ScanDepth:   4,
		},
		Complexity: ComplexityConfig{
			Weights: ComplexityWeights{
				TaskType:     0.2,
				ScopeSize:    0.3,
				Dependencies: 0.2,
				Technology:   0.2,
				PriorSuccess: 0.1,
			},
			Thresholds: ComplexityThresholds{
				Medium: 40,
				High:   70,
			},
		},
		Session: SessionConfig{
			RetryBackoff:    1 * time.Second,
			MaxStateRetries: 10,
		},
		Validation: ValidationConfig{
			AutoCommands:   []string{},
			CommandTimeout: 2 * time.Minute,
			MaxTurns:       10,
		},
		History: HistoryConfig{
			MaxEntries: 50,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 500,
		},
	}
}
