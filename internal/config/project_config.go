package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectConfigPath 返回 dir 下的项目配置路径（dir/.taskrank/config.json）
// ProjectConfigPath returns the project config path under dir
func ProjectConfigPath(dir string) string {
	return filepath.Join(strings.TrimSpace(dir), ".taskrank", "config.json")
}

// InitProjectScaffold 在 dir 下初始化项目级配置模板；已存在时不覆盖并返回 created=false
// InitProjectScaffold writes a default project config under dir; an existing file is left untouched
func InitProjectScaffold(dir string) (path string, created bool, err error) {
	path = ProjectConfigPath(dir)

	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return path, false, fmt.Errorf("project config path is a directory: %s", path)
		}
		return path, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return path, false, fmt.Errorf("stat project config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, false, fmt.Errorf("mkdir .taskrank: %w", err)
	}

	// 模板不写入派生路径与凭据
	cfg := Default()
	cfg.Storage = StorageConfig{}
	cfg.Vault = VaultConfig{Root: "."}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return path, false, fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return path, false, fmt.Errorf("write project config: %w", err)
	}
	return path, true, nil
}

// WriteProviderModel 将 provider.model 写入项目配置，保留其余键
// WriteProviderModel sets provider.model in the project config, keeping other keys
func WriteProviderModel(projectDir, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("model is empty")
	}
	path := ProjectConfigPath(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir .taskrank: %w", err)
	}
	var root map[string]any
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(stripJSONComments(data), &root); err != nil {
			root = nil
		}
	}
	if root == nil {
		root = make(map[string]any)
	}
	provider, _ := root["provider"].(map[string]any)
	if provider == nil {
		provider = make(map[string]any)
	}
	provider["model"] = model
	root["provider"] = provider
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
