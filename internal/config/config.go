package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Strategy 任务收集策略
// Strategy selects how open tasks are collected
const (
	StrategyScan  = "scan"
	StrategyIndex = "index"
)

// UI 模式
const (
	ModeLine = "line"
	ModeTUI  = "tui"
)

type ProviderConfig struct {
	BaseURL         string `json:"base_url"`
	Model           string `json:"model"`
	APIKey          string `json:"api_key"`
	TimeoutMS       int    `json:"timeout_ms"`
	SystemPrompt    string `json:"system_prompt,omitempty"`
	MaxPromptTokens int    `json:"max_prompt_tokens"`
}

// CollectConfig 收集策略与范围
// CollectConfig selects the collection strategy and the folders it covers
type CollectConfig struct {
	Strategy string   `json:"strategy"`
	Folders  []string `json:"folders"`
	// TaskExport 外部任务索引导出文件（JSON 或 YAML），为空时使用内置索引
	// TaskExport is an external task-index export file (JSON or YAML); empty uses the built-in index
	TaskExport string `json:"task_export,omitempty"`
}

type PrioritiesConfig struct {
	Heading string `json:"heading"`
}

type SyncConfig struct {
	PollIntervalMS int `json:"poll_interval_ms"`
	TimeoutMS      int `json:"timeout_ms"`
}

type IndexConfig struct {
	DBPath     string `json:"db_path,omitempty"`
	DebounceMS int    `json:"debounce_ms"`
}

type UIConfig struct {
	Mode    string `json:"mode"`
	Locale  string `json:"locale,omitempty"`
	Preview bool   `json:"preview"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir"`
}

type VaultConfig struct {
	Root string `json:"root"`
}

type Config struct {
	Provider   ProviderConfig   `json:"provider"`
	Collect    CollectConfig    `json:"collect"`
	Priorities PrioritiesConfig `json:"priorities"`
	Sync       SyncConfig       `json:"sync"`
	Index      IndexConfig      `json:"index"`
	UI         UIConfig         `json:"ui"`
	Storage    StorageConfig    `json:"storage"`
	Vault      VaultConfig      `json:"vault"`
}

// fileConfig 与 Config 对应，但使用指针以区分“未设置”与零值
// fileConfig mirrors Config with pointers so unset keys keep the lower layer
type fileConfig struct {
	Provider *struct {
		BaseURL         *string `json:"base_url"`
		Model           *string `json:"model"`
		APIKey          *string `json:"api_key"`
		TimeoutMS       *int    `json:"timeout_ms"`
		SystemPrompt    *string `json:"system_prompt"`
		MaxPromptTokens *int    `json:"max_prompt_tokens"`
	} `json:"provider"`
	Collect *struct {
		Strategy   *string  `json:"strategy"`
		Folders    []string `json:"folders"`
		TaskExport *string  `json:"task_export"`
	} `json:"collect"`
	Priorities *struct {
		Heading *string `json:"heading"`
	} `json:"priorities"`
	Sync *struct {
		PollIntervalMS *int `json:"poll_interval_ms"`
		TimeoutMS      *int `json:"timeout_ms"`
	} `json:"sync"`
	Index *struct {
		DBPath     *string `json:"db_path"`
		DebounceMS *int    `json:"debounce_ms"`
	} `json:"index"`
	UI *struct {
		Mode    *string `json:"mode"`
		Locale  *string `json:"locale"`
		Preview *bool   `json:"preview"`
	} `json:"ui"`
	Storage *struct {
		BaseDir *string `json:"base_dir"`
	} `json:"storage"`
	Vault *struct {
		Root *string `json:"root"`
	} `json:"vault"`
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:         DefaultBaseURL,
			Model:           DefaultModel,
			TimeoutMS:       DefaultProviderTimeoutMS,
			MaxPromptTokens: DefaultMaxPromptTokens,
		},
		Collect: CollectConfig{
			Strategy: StrategyScan,
		},
		Priorities: PrioritiesConfig{
			Heading: DefaultPrioritiesHeading,
		},
		Sync: SyncConfig{
			PollIntervalMS: DefaultSyncPollIntervalMS,
			TimeoutMS:      DefaultSyncTimeoutMS,
		},
		Index: IndexConfig{
			DebounceMS: DefaultIndexDebounceMS,
		},
		UI: UIConfig{
			Mode:    ModeLine,
			Preview: true,
		},
		Storage: StorageConfig{
			BaseDir: "~/.taskrank",
		},
		Vault: VaultConfig{
			Root: ".",
		},
	}
}

// Load 按 默认值 → 全局 → 项目（或显式路径）→ 环境变量 的顺序合并配置
// Load layers defaults, the global file, the project (or explicit) file and the environment
func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("TASKRANK_CONFIG_PATH")); envPath != "" && resolvedPath == "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".taskrank", "config.json"),
		filepath.Join(home, ".taskrank", "config.jsonc"),
	}
}

func findProjectConfigPath() string {
	candidates := []string{
		".taskrank/config.json",
		".taskrank/config.jsonc",
		"taskrank.config.jsonc",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(stripJSONComments(data), &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, f fileConfig) {
	if p := f.Provider; p != nil {
		setString(&cfg.Provider.BaseURL, p.BaseURL)
		setString(&cfg.Provider.Model, p.Model)
		setString(&cfg.Provider.APIKey, p.APIKey)
		setString(&cfg.Provider.SystemPrompt, p.SystemPrompt)
		setInt(&cfg.Provider.TimeoutMS, p.TimeoutMS)
		setInt(&cfg.Provider.MaxPromptTokens, p.MaxPromptTokens)
	}
	if c := f.Collect; c != nil {
		setString(&cfg.Collect.Strategy, c.Strategy)
		setString(&cfg.Collect.TaskExport, c.TaskExport)
		// 数组整体覆盖
		if c.Folders != nil {
			cfg.Collect.Folders = append([]string(nil), c.Folders...)
		}
	}
	if p := f.Priorities; p != nil {
		setString(&cfg.Priorities.Heading, p.Heading)
	}
	if s := f.Sync; s != nil {
		setInt(&cfg.Sync.PollIntervalMS, s.PollIntervalMS)
		setInt(&cfg.Sync.TimeoutMS, s.TimeoutMS)
	}
	if i := f.Index; i != nil {
		setString(&cfg.Index.DBPath, i.DBPath)
		setInt(&cfg.Index.DebounceMS, i.DebounceMS)
	}
	if u := f.UI; u != nil {
		setString(&cfg.UI.Mode, u.Mode)
		setString(&cfg.UI.Locale, u.Locale)
		if u.Preview != nil {
			cfg.UI.Preview = *u.Preview
		}
	}
	if s := f.Storage; s != nil {
		setString(&cfg.Storage.BaseDir, s.BaseDir)
	}
	if v := f.Vault; v != nil {
		setString(&cfg.Vault.Root, v.Root)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func normalize(cfg *Config) error {
	def := Default()

	cfg.Provider.BaseURL = strings.TrimSpace(cfg.Provider.BaseURL)
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	cfg.Provider.Model = strings.TrimSpace(cfg.Provider.Model)
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	cfg.Provider.APIKey = strings.TrimSpace(cfg.Provider.APIKey)
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Provider.MaxPromptTokens <= 0 {
		cfg.Provider.MaxPromptTokens = def.Provider.MaxPromptTokens
	}

	switch s := strings.ToLower(strings.TrimSpace(cfg.Collect.Strategy)); s {
	case "":
		cfg.Collect.Strategy = def.Collect.Strategy
	case StrategyScan, StrategyIndex:
		cfg.Collect.Strategy = s
	default:
		return fmt.Errorf("invalid collect.strategy %q (want %s or %s)", cfg.Collect.Strategy, StrategyScan, StrategyIndex)
	}
	cfg.Collect.Folders = normalizeFolders(cfg.Collect.Folders)
	cfg.Collect.TaskExport = strings.TrimSpace(cfg.Collect.TaskExport)

	if strings.TrimSpace(cfg.Priorities.Heading) == "" {
		cfg.Priorities.Heading = def.Priorities.Heading
	}

	if cfg.Sync.PollIntervalMS <= 0 {
		cfg.Sync.PollIntervalMS = def.Sync.PollIntervalMS
	}
	if cfg.Sync.TimeoutMS <= 0 {
		cfg.Sync.TimeoutMS = def.Sync.TimeoutMS
	}
	if cfg.Index.DebounceMS <= 0 {
		cfg.Index.DebounceMS = def.Index.DebounceMS
	}

	switch m := strings.ToLower(strings.TrimSpace(cfg.UI.Mode)); m {
	case "":
		cfg.UI.Mode = def.UI.Mode
	case ModeLine, ModeTUI:
		cfg.UI.Mode = m
	default:
		return fmt.Errorf("invalid ui.mode %q (want %s or %s)", cfg.UI.Mode, ModeLine, ModeTUI)
	}
	cfg.UI.Locale = strings.TrimSpace(cfg.UI.Locale)

	if strings.TrimSpace(cfg.Storage.BaseDir) == "" {
		cfg.Storage.BaseDir = def.Storage.BaseDir
	}
	storageDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = storageDir

	dbPath := strings.TrimSpace(cfg.Index.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join(storageDir, "index.db")
	}
	if cfg.Index.DBPath, err = expandPath(dbPath); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Vault.Root) == "" {
		cfg.Vault.Root = def.Vault.Root
	}
	if cfg.Vault.Root, err = expandPath(cfg.Vault.Root); err != nil {
		return err
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("TASKRANK_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKRANK_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKRANK_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKRANK_VAULT")); v != "" {
		cfg.Vault.Root = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKRANK_TIMEOUT_MS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid TASKRANK_TIMEOUT_MS: %q", v)
		}
		cfg.Provider.TimeoutMS = n
	}

	return cfg, normalize(&cfg)
}

// normalizeFolders 去除首尾斜杠与空白，去重并保持顺序
// normalizeFolders trims slashes and blanks, dropping duplicates in order
func normalizeFolders(folders []string) []string {
	if len(folders) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(folders))
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		f = strings.Trim(strings.TrimSpace(filepath.ToSlash(f)), "/")
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

// stripJSONComments 去除 // 与 /* */ 注释，字符串内容保持不变
// stripJSONComments removes line and block comments outside string literals
func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	var out bytes.Buffer

	for i := 0; i < len(data); i++ {
		c := data[i]
		var next byte
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case c == '"':
				state = stateString
				out.WriteByte(c)
			case c == '/' && next == '/':
				state = stateLineComment
				i++
			case c == '/' && next == '*':
				state = stateBlockComment
				i++
			default:
				out.WriteByte(c)
			}
		case stateString:
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}
	return out.Bytes()
}
