package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "MEMORYGEN_CONFIG"
	logLevelEnv       = "MEMORYGEN_LOG_LEVEL"
	googleAPIKeyEnv   = "GOOGLE_API_KEY"
	geminiModelEnv    = "GEMINI_MODEL"
	chatAPIKeyEnv     = "CHAT_API_KEY"
	chatModelEnv      = "CHAT_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Provider      string             `yaml:"provider"`
	Gemini        GeminiConfig       `yaml:"gemini"`
	Chat          ChatConfig         `yaml:"chat"`
	Generation    GenerationConfig   `yaml:"generation"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Memories      MemoriesConfig     `yaml:"memories"`
	Pairs         PairsConfig        `yaml:"pairs"`
	Checkpoint    CheckpointConfig   `yaml:"checkpoint"`
	Output        OutputConfig       `yaml:"output"`
	Prompt        PromptConfig       `yaml:"prompt"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
}

// ChatConfig defines how to contact an OpenAI-compatible chat API.
type ChatConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// GenerationConfig is forwarded to every generation call.
type GenerationConfig struct {
	Temperature     float32       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"maxOutputTokens"`
	CallTimeout     time.Duration `yaml:"callTimeout"`
}

// PipelineConfig tunes retries, pacing and checkpointing.
type PipelineConfig struct {
	Delay       time.Duration `yaml:"delay"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxAttempts int           `yaml:"maxAttempts"`
	FlushEvery  int           `yaml:"flushEvery"`
	Workers     int           `yaml:"workers"`
}

// MemoriesConfig drives persona-memory generation.
type MemoriesConfig struct {
	TargetCount int              `yaml:"targetCount"`
	Selection   string           `yaml:"selection"`
	Seed        int64            `yaml:"seed"`
	PersonaPath string           `yaml:"personaPath"`
	Categories  []CategoryConfig `yaml:"categories"`
}

// CategoryConfig lists the topics of one memory category.
type CategoryConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Topics      []string `yaml:"topics"`
}

// PairsConfig drives Q/A batch generation from chapter files. It carries its
// own checkpoint and artifact paths so both modes can share one config file.
type PairsConfig struct {
	ChaptersDir     string        `yaml:"chaptersDir"`
	PerChapter      int           `yaml:"perChapter"`
	BatchSize       int           `yaml:"batchSize"`
	MinChapterChars int           `yaml:"minChapterChars"`
	Temperature     float32       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"maxOutputTokens"`
	Delay           time.Duration `yaml:"delay"`
	CheckpointPath  string        `yaml:"checkpointPath"`
	RawPath         string        `yaml:"rawPath"`
	NormalizedPath  string        `yaml:"normalizedPath"`
	SplitDir        string        `yaml:"splitDir"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// OutputConfig names the final artifacts.
type OutputConfig struct {
	RawPath        string `yaml:"rawPath"`
	NormalizedPath string `yaml:"normalizedPath"`
	SplitDir       string `yaml:"splitDir"`
	Dedupe         bool   `yaml:"dedupe"`
}

// PromptConfig optionally overrides the built-in templates.
type PromptConfig struct {
	MemoryTemplatePath string `yaml:"memoryTemplatePath"`
	BatchTemplatePath  string `yaml:"batchTemplatePath"`
	MaxContextChars    int    `yaml:"maxContextChars"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration from $MEMORYGEN_CONFIG (if set) and applies
// environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile reads YAML configuration from path (if not empty) and applies
// environment overrides. Unreadable files fall back to defaults.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(googleAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}

	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}

	if v := os.Getenv(chatAPIKeyEnv); v != "" {
		c.Chat.APIKey = v
	}

	if v := os.Getenv(chatModelEnv); v != "" {
		c.Chat.Model = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Provider != "" {
		base.Provider = override.Provider
	}

	if override.Gemini.APIKey != "" {
		base.Gemini.APIKey = override.Gemini.APIKey
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.BaseURL != "" {
		base.Gemini.BaseURL = override.Gemini.BaseURL
	}

	if override.Chat.Endpoint != "" {
		base.Chat.Endpoint = override.Chat.Endpoint
	}
	if override.Chat.Model != "" {
		base.Chat.Model = override.Chat.Model
	}
	if override.Chat.APIKey != "" {
		base.Chat.APIKey = override.Chat.APIKey
	}
	if override.Chat.SystemPrompt != "" {
		base.Chat.SystemPrompt = override.Chat.SystemPrompt
	}

	if override.Generation.Temperature != 0 {
		base.Generation.Temperature = override.Generation.Temperature
	}
	if override.Generation.MaxOutputTokens != 0 {
		base.Generation.MaxOutputTokens = override.Generation.MaxOutputTokens
	}
	if override.Generation.CallTimeout != 0 {
		base.Generation.CallTimeout = override.Generation.CallTimeout
	}

	if override.Pipeline.Delay != 0 {
		base.Pipeline.Delay = override.Pipeline.Delay
	}
	if override.Pipeline.Backoff != 0 {
		base.Pipeline.Backoff = override.Pipeline.Backoff
	}
	if override.Pipeline.MaxAttempts != 0 {
		base.Pipeline.MaxAttempts = override.Pipeline.MaxAttempts
	}
	if override.Pipeline.FlushEvery != 0 {
		base.Pipeline.FlushEvery = override.Pipeline.FlushEvery
	}
	if override.Pipeline.Workers != 0 {
		base.Pipeline.Workers = override.Pipeline.Workers
	}

	if override.Memories.TargetCount != 0 {
		base.Memories.TargetCount = override.Memories.TargetCount
	}
	if override.Memories.Selection != "" {
		base.Memories.Selection = override.Memories.Selection
	}
	if override.Memories.Seed != 0 {
		base.Memories.Seed = override.Memories.Seed
	}
	if override.Memories.PersonaPath != "" {
		base.Memories.PersonaPath = override.Memories.PersonaPath
	}
	if len(override.Memories.Categories) > 0 {
		base.Memories.Categories = override.Memories.Categories
	}

	if override.Pairs.ChaptersDir != "" {
		base.Pairs.ChaptersDir = override.Pairs.ChaptersDir
	}
	if override.Pairs.PerChapter != 0 {
		base.Pairs.PerChapter = override.Pairs.PerChapter
	}
	if override.Pairs.BatchSize != 0 {
		base.Pairs.BatchSize = override.Pairs.BatchSize
	}
	if override.Pairs.MinChapterChars != 0 {
		base.Pairs.MinChapterChars = override.Pairs.MinChapterChars
	}
	if override.Pairs.Temperature != 0 {
		base.Pairs.Temperature = override.Pairs.Temperature
	}
	if override.Pairs.MaxOutputTokens != 0 {
		base.Pairs.MaxOutputTokens = override.Pairs.MaxOutputTokens
	}
	if override.Pairs.Delay != 0 {
		base.Pairs.Delay = override.Pairs.Delay
	}
	if override.Pairs.CheckpointPath != "" {
		base.Pairs.CheckpointPath = override.Pairs.CheckpointPath
	}
	if override.Pairs.RawPath != "" {
		base.Pairs.RawPath = override.Pairs.RawPath
	}
	if override.Pairs.NormalizedPath != "" {
		base.Pairs.NormalizedPath = override.Pairs.NormalizedPath
	}
	if override.Pairs.SplitDir != "" {
		base.Pairs.SplitDir = override.Pairs.SplitDir
	}

	if override.Checkpoint.Backend != "" {
		base.Checkpoint.Backend = override.Checkpoint.Backend
	}
	if override.Checkpoint.Path != "" {
		base.Checkpoint.Path = override.Checkpoint.Path
	}

	if override.Output.RawPath != "" {
		base.Output.RawPath = override.Output.RawPath
	}
	if override.Output.NormalizedPath != "" {
		base.Output.NormalizedPath = override.Output.NormalizedPath
	}
	if override.Output.SplitDir != "" {
		base.Output.SplitDir = override.Output.SplitDir
	}
	if override.Output.Dedupe {
		base.Output.Dedupe = true
	}

	if override.Prompt.MemoryTemplatePath != "" {
		base.Prompt.MemoryTemplatePath = override.Prompt.MemoryTemplatePath
	}
	if override.Prompt.BatchTemplatePath != "" {
		base.Prompt.BatchTemplatePath = override.Prompt.BatchTemplatePath
	}
	if override.Prompt.MaxContextChars != 0 {
		base.Prompt.MaxContextChars = override.Prompt.MaxContextChars
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Provider: "gemini",
		Gemini:   GeminiConfig{Model: "gemini-2.5-flash"},
		Chat: ChatConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You write instruction-tuning data and answer with JSON only.",
		},
		Generation: GenerationConfig{
			CallTimeout: 2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Delay:       300 * time.Millisecond,
			Backoff:     time.Second,
			MaxAttempts: 2,
			FlushEvery:  5,
			Workers:     1,
		},
		Memories: MemoriesConfig{
			TargetCount: 2000,
			Selection:   "random",
			PersonaPath: "data/raw/persona.txt",
			Categories:  defaultCategories(),
		},
		Pairs: PairsConfig{
			ChaptersDir:     "book_chapters",
			PerChapter:      1000,
			BatchSize:       50,
			MinChapterChars: 5000,
			Temperature:     0.8,
			MaxOutputTokens: 8000,
			Delay:           time.Second,
			CheckpointPath:  "training_data/pairs_checkpoint.json",
			RawPath:         "training_data/all_chapters_raw.json",
			NormalizedPath:  "training_data/all_chapters_training_data.json",
			SplitDir:        "training_data",
		},
		Checkpoint: CheckpointConfig{
			Backend: "file",
			Path:    "data/raw/synthetic_memories_backup.json",
		},
		Output: OutputConfig{
			RawPath:        "data/raw/synthetic_memories.json",
			NormalizedPath: "data/processed/synthetic_memories.json",
		},
	}
}

func defaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{Name: "childhood", Description: "Early life memories, family, school, friends",
			Topics: []string{"first day of school", "family vacations", "childhood friends", "favorite toys", "learning to ride a bike"}},
		{Name: "education", Description: "School, college, learning experiences",
			Topics: []string{"favorite subjects", "teachers who inspired me", "study habits", "graduation day", "college life"}},
		{Name: "career", Description: "Work experiences, achievements, challenges",
			Topics: []string{"first job", "career milestones", "work projects", "professional relationships", "career transitions"}},
		{Name: "relationships", Description: "Family, friends, romantic relationships",
			Topics: []string{"best friends", "family traditions", "important relationships", "social gatherings", "support systems"}},
		{Name: "hobbies", Description: "Interests, passions, recreational activities",
			Topics: []string{"favorite hobbies", "sports and fitness", "creative pursuits", "travel experiences", "collections or interests"}},
		{Name: "achievements", Description: "Personal accomplishments and proud moments",
			Topics: []string{"awards and recognition", "personal goals achieved", "overcoming challenges", "skills learned", "proud moments"}},
		{Name: "life_events", Description: "Significant life moments and transitions",
			Topics: []string{"moving to a new place", "major life decisions", "transformative experiences", "celebrations", "life lessons"}},
		{Name: "preferences", Description: "Likes, dislikes, values, beliefs",
			Topics: []string{"favorite foods", "music preferences", "personal values", "life philosophy", "pet peeves"}},
	}
}
