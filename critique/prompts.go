package critique

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
)

//go:embed prompts.yaml
var defaultPrompts []byte

const contentPlaceholder = "{{content}}"

// Prompt is one system/user message pair.
type Prompt struct {
	System    string `koanf:"system"`
	User      string `koanf:"user"`
	MaxTokens int    `koanf:"max_tokens"`
}

// Render substitutes content into the user template.
func (p Prompt) Render(content string) string {
	return strings.ReplaceAll(p.User, contentPlaceholder, content)
}

// Prompts holds the five section prompts and the overall prompt.
type Prompts struct {
	Temperature float32 `koanf:"temperature"`
	Headline    Prompt  `koanf:"headline"`
	CTA         Prompt  `koanf:"cta"`
	Trust       Prompt  `koanf:"trust"`
	Copy        Prompt  `koanf:"copy"`
	Value       Prompt  `koanf:"value"`
	Overall     Prompt  `koanf:"overall"`
}

// DefaultPrompts returns the embedded prompt set.
func DefaultPrompts() (Prompts, error) {
	return ParsePrompts(defaultPrompts)
}

// ParsePrompts reads a YAML prompt set.
func ParsePrompts(data []byte) (Prompts, error) {
	k := koanf.New(".")
	if err := k.Load(rawBytes(data), yaml.Parser()); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts: %w", err)
	}

	var p Prompts
	if err := k.UnmarshalWithConf("", &p, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Prompts{}, fmt.Errorf("decode prompts: %w", err)
	}

	for name, section := range p.sections() {
		if section.System == "" || !strings.Contains(section.User, contentPlaceholder) {
			return Prompts{}, fmt.Errorf("prompt %q: system message and %s placeholder are required", name, contentPlaceholder)
		}
	}
	return p, nil
}

func (p Prompts) sections() map[string]Prompt {
	return map[string]Prompt{
		"headline": p.Headline,
		"cta":      p.CTA,
		"trust":    p.Trust,
		"copy":     p.Copy,
		"value":    p.Value,
		"overall":  p.Overall,
	}
}

// rawBytes is a koanf.Provider over an in-memory document.
type rawBytes []byte

func (r rawBytes) ReadBytes() ([]byte, error) {
	return r, nil
}

func (r rawBytes) Read() (map[string]interface{}, error) {
	return nil, errors.New("rawBytes provider does not support Read")
}
