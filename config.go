package svn2svn

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// FileConfig is the YAML form of a replay configuration, an alternative
// to spelling everything out on the command line. Flags given explicitly
// on the command line win over file values.
type FileConfig struct {
	SourceURL string `yaml:"source-url"`
	TargetURL string `yaml:"target-url"`

	// StartRev and EndRev bound the source range; 0 means unbounded on
	// that side.
	StartRev int64 `yaml:"start-rev"`
	EndRev   int64 `yaml:"end-rev"`

	KeepAuthor bool `yaml:"keep-author"`
	KeepDate   bool `yaml:"keep-date"`
	LogAuthor  bool `yaml:"log-author"`
	LogDate    bool `yaml:"log-date"`
	KeepProps  bool `yaml:"keep-props"`

	ContinueFromBreak bool `yaml:"continue-from-break"`
	Force             bool `yaml:"force"`
	DryRun            bool `yaml:"dry-run"`

	// Limit caps the number of commits made in one run, 0 is unlimited.
	Limit int `yaml:"limit"`

	PreCommitHook string `yaml:"pre-commit-hook"`
	WorkingCopy   string `yaml:"working-copy"`
	MapCache      string `yaml:"map-cache"`
}

// ParseConfigYAML decodes a YAML replay configuration.
func ParseConfigYAML(file []byte) (*FileConfig, error) {
	result := &FileConfig{}

	if err := yaml.Unmarshal(file, result); err != nil {
		return nil, err
	}

	return result, nil
}

// LoadConfigFile reads and decodes a YAML replay configuration file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}

	return cfg, nil
}
