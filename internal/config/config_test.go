package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate 隔离 HOME、工作目录与环境变量
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"TASKRANK_CONFIG_PATH", "TASKRANK_API_KEY", "OPENAI_API_KEY", "TASKRANK_MODEL", "TASKRANK_BASE_URL", "TASKRANK_VAULT", "TASKRANK_TIMEOUT_MS"} {
		t.Setenv(k, "")
	}
	work = t.TempDir()
	oldwd, _ := os.Getwd()
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldwd) })
	return home, work
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home, work := isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != DefaultModel || cfg.Collect.Strategy != StrategyScan || cfg.UI.Mode != ModeLine {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Priorities.Heading != DefaultPrioritiesHeading {
		t.Fatalf("heading=%q", cfg.Priorities.Heading)
	}
	if cfg.Storage.BaseDir != filepath.Join(home, ".taskrank") {
		t.Fatalf("storage=%q", cfg.Storage.BaseDir)
	}
	if cfg.Index.DBPath != filepath.Join(home, ".taskrank", "index.db") {
		t.Fatalf("db=%q", cfg.Index.DBPath)
	}
	wantRoot, _ := filepath.Abs(work)
	gotRoot, _ := filepath.EvalSymlinks(cfg.Vault.Root)
	wantRoot, _ = filepath.EvalSymlinks(wantRoot)
	if gotRoot != wantRoot {
		t.Fatalf("vault root=%q want %q", cfg.Vault.Root, wantRoot)
	}
}

func TestLoadJSONCAndPrecedence(t *testing.T) {
	home, _ := isolate(t)

	writeFile(t, filepath.Join(home, ".taskrank", "config.json"), `{
  // global
  "provider": {"model": "global-model", "timeout_ms": 5000},
  "ui": {"preview": false}
}`)
	writeFile(t, filepath.Join(".taskrank", "config.json"), `{
  /* project */
  "provider": {"model": "project-model"},
  "collect": {"strategy": "INDEX", "folders": ["/Work/", "Home", "Work"]},
  "priorities": {"heading": "Focus // this week"}
}`)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "project-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Provider.TimeoutMS != 5000 {
		t.Fatalf("timeout=%d", cfg.Provider.TimeoutMS)
	}
	if cfg.UI.Preview {
		t.Fatal("preview should stay disabled from global layer")
	}
	if cfg.Collect.Strategy != StrategyIndex {
		t.Fatalf("strategy=%q", cfg.Collect.Strategy)
	}
	if strings.Join(cfg.Collect.Folders, ",") != "Work,Home" {
		t.Fatalf("folders=%v", cfg.Collect.Folders)
	}
	if cfg.Priorities.Heading != "Focus // this week" {
		t.Fatalf("heading=%q", cfg.Priorities.Heading)
	}
}

func TestExplicitPathOverridesProject(t *testing.T) {
	_, work := isolate(t)
	writeFile(t, filepath.Join(".taskrank", "config.json"), `{"provider": {"model": "project-model"}}`)
	explicit := filepath.Join(work, "other.jsonc")
	writeFile(t, explicit, `{"provider": {"model": "explicit-model"}}`)

	cfg, err := Load(explicit)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "explicit-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}

	t.Setenv("TASKRANK_CONFIG_PATH", explicit)
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "explicit-model" {
		t.Fatalf("env path model=%q", cfg.Provider.Model)
	}
}

func TestEnvOverride(t *testing.T) {
	isolate(t)
	writeFile(t, filepath.Join(".taskrank", "config.json"), `{"provider": {"api_key": "file-key"}}`)

	t.Setenv("TASKRANK_MODEL", "env-model")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "env-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
	if cfg.Provider.APIKey != "file-key" {
		t.Fatalf("OPENAI_API_KEY must not override a configured key, got %q", cfg.Provider.APIKey)
	}

	t.Setenv("TASKRANK_API_KEY", "env-key")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Fatalf("api key=%q", cfg.Provider.APIKey)
	}
}

func TestEnvInvalidTimeout(t *testing.T) {
	isolate(t)
	t.Setenv("TASKRANK_TIMEOUT_MS", "soon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid TASKRANK_TIMEOUT_MS")
	}
}

func TestInvalidEnums(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "strategy", body: `{"collect": {"strategy": "guess"}}`},
		{name: "mode", body: `{"ui": {"mode": "gui"}}`},
		{name: "syntax", body: `{"ui": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			writeFile(t, filepath.Join(".taskrank", "config.json"), tc.body)
			if _, err := Load(""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestStripJSONComments(t *testing.T) {
	in := `{"a": "x // not a comment", /* gone */ "b": "\"/*kept*/\"" // tail
}`
	var out map[string]string
	if err := json.Unmarshal(stripJSONComments([]byte(in)), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["a"] != "x // not a comment" || out["b"] != `"/*kept*/"` {
		t.Fatalf("out=%v", out)
	}
}

func TestInitProjectScaffold(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	path, created, err := InitProjectScaffold(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !created || path != ProjectConfigPath(dir) {
		t.Fatalf("path=%q created=%v", path, created)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("scaffold must load: %v", err)
	}
	if cfg.Provider.APIKey != "" {
		t.Fatal("scaffold must not carry a credential")
	}

	if err := WriteProviderModel(dir, "gpt-4.1"); err != nil {
		t.Fatal(err)
	}
	_, created, err = InitProjectScaffold(dir)
	if err != nil || created {
		t.Fatalf("second init should keep the file: created=%v err=%v", created, err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Model != "gpt-4.1" || cfg.Priorities.Heading != DefaultPrioritiesHeading {
		t.Fatalf("cfg=%+v", cfg)
	}
}
