package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LinkButton is a URL button shown under the welcome photo.
type LinkButton struct {
	Text string `yaml:"text"`
	URL  string `yaml:"url"`
}

// Welcome is the reply to a bare /start.
type Welcome struct {
	Caption string       `yaml:"caption"`
	Buttons []LinkButton `yaml:"buttons"`
}

// Texts holds the user-facing copy that varies per deployment.
type Texts struct {
	Welcome Welcome `yaml:"welcome"`

	// PoweredBy is the channel credited in announcement footers.
	PoweredBy string `yaml:"powered_by"`
}

const welcomeIntro = "👋 Welcome!\n\nThis bot does not support the direct messages"

var buttonLabels = []string{"Main Channel", "Second Channel"}

// DefaultTexts derives texts from the required channels: the first two get
// welcome buttons and the second (or only) one is credited in footers.
func DefaultTexts(cfg *Config) Texts {
	channels := cfg.RequiredChannelList()

	var t Texts
	switch {
	case len(channels) > 1:
		t.PoweredBy = channels[1]
	case len(channels) == 1:
		t.PoweredBy = channels[0]
	}

	for i, ch := range channels {
		if i == len(buttonLabels) {
			break
		}
		t.Welcome.Buttons = append(t.Welcome.Buttons, LinkButton{Text: buttonLabels[i], URL: "https://t.me/" + ch})
	}

	t.Welcome.Caption = welcomeIntro
	if t.PoweredBy != "" {
		t.Welcome.Caption += "\n\n⬡ Powered by @" + t.PoweredBy
	}
	return t
}

// LoadTexts returns DefaultTexts overlaid with the YAML file at path, if any.
// ${VAR} and $VAR references in the file are expanded from the environment.
func LoadTexts(path string, cfg *Config) (Texts, error) {
	t := DefaultTexts(cfg)
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Texts{}, fmt.Errorf("texts: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), &t); err != nil {
		return Texts{}, fmt.Errorf("texts: parse %s: %w", path, err)
	}
	t.PoweredBy = strings.TrimPrefix(strings.TrimSpace(t.PoweredBy), "@")
	return t, nil
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the corresponding environment
// variable value. Missing vars are replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}
