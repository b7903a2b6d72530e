package taskindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export 外部任务索引导出文件（JSON 或 YAML），暴露旧版 Tasks() 形状
// Export reads a task-index dump written by an external tool (JSON or YAML)
// and exposes the legacy Tasks() shape.
type Export struct {
	Path string
}

type exportFile struct {
	Tasks []map[string]any `json:"tasks" yaml:"tasks"`
}

func (e Export) Tasks() ([]map[string]any, error) {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		return nil, fmt.Errorf("task export path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task export %q: %w", path, err)
	}

	var file exportFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse task export %q: %w", path, err)
		}
	default:
		// a bare array is accepted too
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal(data, &file.Tasks); err != nil {
				return nil, fmt.Errorf("parse task export %q: %w", path, err)
			}
			break
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse task export %q: %w", path, err)
		}
	}
	return file.Tasks, nil
}
