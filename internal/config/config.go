package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for tj, stored in ~/.tj/config.yaml.
// Every key can be overridden through a TJ_ environment variable, with dots
// replaced by underscores (TJ_VIEW_PAGER=never).
type Config struct {
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Editor  EditorConfig  `mapstructure:"editor" yaml:"editor"`
	View    ViewConfig    `mapstructure:"view" yaml:"view"`
}

// JournalConfig locates the journal on disk.
type JournalConfig struct {
	// Dir holds the day files. A leading "~/" is expanded.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// EditorConfig controls how "tj write" obtains a draft.
type EditorConfig struct {
	// Command is the external editor. Empty means $VISUAL, $EDITOR, then vi.
	Command string `mapstructure:"command" yaml:"command"`
	// Mode is ModeExternal or ModePrompt.
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// ViewConfig controls "tj view".
type ViewConfig struct {
	// Pager is PagerAuto, PagerAlways or PagerNever.
	Pager string `mapstructure:"pager" yaml:"pager"`
	Color bool   `mapstructure:"color" yaml:"color"`
}

const (
	ModeExternal = "external"
	ModePrompt   = "prompt"

	PagerAuto   = "auto"
	PagerAlways = "always"
	PagerNever  = "never"

	// DefaultJournalDir is the journal location used when none is configured.
	DefaultJournalDir = "~/.tj/journal"

	envPrefix = "tj"
)

// Config keys accepted by Get and Set.
const (
	KeyJournalDir    = "journal.dir"
	KeyEditorCommand = "editor.command"
	KeyEditorMode    = "editor.mode"
	KeyViewPager     = "view.pager"
	KeyViewColor     = "view.color"
)

// Keys lists every config key in file order.
var Keys = []string{KeyJournalDir, KeyEditorCommand, KeyEditorMode, KeyViewPager, KeyViewColor}

var boolKeys = []string{KeyViewColor}

// configTemplate is the annotated config written on first run.
const configTemplate = `# tj configuration - ~/.tj/config.yaml
#
# All settings are optional. Any key can also be set from the environment,
# e.g. TJ_JOURNAL_DIR=/tmp/journal or TJ_VIEW_PAGER=never.
# Change a value with: tj config set <key> <value>

journal:
  # Directory holding one file per day (YYYY-MM-DD.log).
  # Can be overridden per command with: tj --dir <path>
  dir: ~/.tj/journal

editor:
  # Editor started by "tj write". Leave empty to use $VISUAL, then $EDITOR,
  # then vi.
  command: ""
  # external - edit a scratch file with the command above (default)
  # prompt   - type the entry into an inline text box
  mode: external

view:
  # auto   - page through the journal when stdout is a terminal (default)
  # always - always start the pager
  # never  - print everything to stdout
  pager: auto
  # Colour timestamps and warnings.
  color: true
`

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyJournalDir, DefaultJournalDir)
	v.SetDefault(KeyEditorCommand, "")
	v.SetDefault(KeyEditorMode, ModeExternal)
	v.SetDefault(KeyViewPager, PagerAuto)
	v.SetDefault(KeyViewColor, true)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Dir returns ~/.tj, the home of the config file and the default journal.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".tj"), nil
}

// Path resolves the config file: the explicit path if given, then $TJ_CONFIG,
// then ~/.tj/config.yaml.
func Path(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv("TJ_CONFIG"); env != "" {
		return env, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file at path, creating it with the annotated
// defaults on first run. Missing keys fall back to the defaults and
// environment variables override the file.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// An explicitly empty value in the file means the default, as for the
	// keys that are not there at all.
	if cfg.Journal.Dir == "" {
		cfg.Journal.Dir = DefaultJournalDir
	}
	if cfg.Editor.Mode == "" {
		cfg.Editor.Mode = ModeExternal
	}
	if cfg.View.Pager == "" {
		cfg.View.Pager = PagerAuto
	}
	cfg.Journal.Dir = ExpandHome(cfg.Journal.Dir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values tj cannot act on.
func (c Config) Validate() error {
	switch c.Editor.Mode {
	case ModeExternal, ModePrompt:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", KeyEditorMode, ModeExternal, ModePrompt, c.Editor.Mode)
	}
	switch c.View.Pager {
	case PagerAuto, PagerAlways, PagerNever:
	default:
		return fmt.Errorf("%s must be %q, %q or %q, got %q", KeyViewPager, PagerAuto, PagerAlways, PagerNever, c.View.Pager)
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Values returns the effective value of every key as text.
func (c Config) Values() map[string]string {
	return map[string]string{
		KeyJournalDir:    c.Journal.Dir,
		KeyEditorCommand: c.Editor.Command,
		KeyEditorMode:    c.Editor.Mode,
		KeyViewPager:     c.View.Pager,
		KeyViewColor:     strconv.FormatBool(c.View.Color),
	}
}

// Get returns the effective value of one key.
func (c Config) Get(key string) (string, error) {
	if !slices.Contains(Keys, key) {
		return "", unknownKey(key)
	}
	return c.Values()[key], nil
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(Keys, ", "))
}

// Set stores value under key in the config file at path, keeping the rest of
// the file and its comments. The file is only written when the resulting
// configuration is valid.
func Set(path, key, value string) error {
	if !slices.Contains(Keys, key) {
		return unknownKey(key)
	}
	tag := "!!str"
	if slices.Contains(boolKeys, key) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false, got %q", key, value)
		}
		tag, value = "!!bool", strconv.FormatBool(b)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data = []byte(configTemplate)
	} else if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config file %s: top level is not a mapping", path)
	}
	setNode(root, strings.Split(key, "."), tag, value)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("re-reading config: %w", err)
	}
	if _, err := decode(v); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// setNode sets the scalar at path below the mapping m, creating or replacing
// intermediate mappings.
func setNode(m *yaml.Node, path []string, tag, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != path[0] {
			continue
		}
		child := m.Content[i+1]
		if len(path) == 1 {
			*child = yaml.Node{
				Kind:        yaml.ScalarNode,
				Tag:         tag,
				Value:       value,
				LineComment: child.LineComment,
			}
			return
		}
		if child.Kind != yaml.MappingNode {
			*child = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		setNode(child, path[1:], tag, value)
		return
	}

	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path[0]}
	if len(path) == 1 {
		m.Content = append(m.Content, k, &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value})
		return
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, k, child)
	setNode(child, path[1:], tag, value)
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
