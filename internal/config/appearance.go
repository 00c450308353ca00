package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Appearance is handed to the hosted payment element when it is mounted.
type Appearance struct {
	Theme     string              `yaml:"theme" json:"theme"`
	Variables AppearanceVariables `yaml:"variables" json:"variables"`
}

type AppearanceVariables struct {
	ColorPrimary    string `yaml:"colorPrimary" json:"colorPrimary"`
	ColorBackground string `yaml:"colorBackground" json:"colorBackground"`
	ColorText       string `yaml:"colorText" json:"colorText"`
	ColorDanger     string `yaml:"colorDanger" json:"colorDanger"`
	FontFamily      string `yaml:"fontFamily" json:"fontFamily"`
	BorderRadius    string `yaml:"borderRadius" json:"borderRadius"`
}

// AppearanceSet holds one appearance per presentation (modal, embedded, floating).
type AppearanceSet struct {
	Default      Appearance            `yaml:"default"`
	Presentation map[string]Appearance `yaml:"presentations"`
}

func DefaultAppearance() Appearance {
	return Appearance{
		Theme: "stripe",
		Variables: AppearanceVariables{
			ColorPrimary:    "#1d4ed8",
			ColorBackground: "#ffffff",
			ColorText:       "#1f2937",
			ColorDanger:     "#dc2626",
			FontFamily:      "Inter, system-ui, sans-serif",
			BorderRadius:    "8px",
		},
	}
}

// For returns the appearance for a presentation, falling back to the default.
func (s AppearanceSet) For(presentation string) Appearance {
	if a, ok := s.Presentation[presentation]; ok {
		return a.mergedOnto(s.Default)
	}
	return s.Default
}

func (a Appearance) mergedOnto(base Appearance) Appearance {
	out := base
	if a.Theme != "" {
		out.Theme = a.Theme
	}
	v := a.Variables
	if v.ColorPrimary != "" {
		out.Variables.ColorPrimary = v.ColorPrimary
	}
	if v.ColorBackground != "" {
		out.Variables.ColorBackground = v.ColorBackground
	}
	if v.ColorText != "" {
		out.Variables.ColorText = v.ColorText
	}
	if v.ColorDanger != "" {
		out.Variables.ColorDanger = v.ColorDanger
	}
	if v.FontFamily != "" {
		out.Variables.FontFamily = v.FontFamily
	}
	if v.BorderRadius != "" {
		out.Variables.BorderRadius = v.BorderRadius
	}
	return out
}

// LoadAppearance reads the YAML file at path. An empty path yields the defaults.
func LoadAppearance(path string) (AppearanceSet, error) {
	set := AppearanceSet{Default: DefaultAppearance()}
	if path == "" {
		return set, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return set, fmt.Errorf("could not read appearance file: %w", err)
	}
	return ParseAppearance(raw)
}

func ParseAppearance(raw []byte) (AppearanceSet, error) {
	var parsed AppearanceSet
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return AppearanceSet{Default: DefaultAppearance()}, fmt.Errorf("could not parse appearance file: %w", err)
	}
	parsed.Default = parsed.Default.mergedOnto(DefaultAppearance())
	return parsed, nil
}
