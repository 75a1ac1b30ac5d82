package answer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inktime/support-backend/internal/platform/logger"
)

// DefaultMaxAttempts caps how many candidate models one Generate call races.
const DefaultMaxAttempts = 3

// ModelDescriptor is one entry in the priority-ordered model list. Static
// configuration, not persisted state.
type ModelDescriptor struct {
	Name           string  `yaml:"name"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

func (d ModelDescriptor) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// DefaultModels is the built-in priority list, fastest-responding first with
// progressively longer timeouts down the fallback chain.
func DefaultModels() []ModelDescriptor {
	return []ModelDescriptor{
		{Name: "meta-llama/llama-3.2-3b-instruct", Temperature: 0.7, MaxTokens: 1000, TimeoutSeconds: 10},
		{Name: "mistralai/mistral-7b-instruct:free", Temperature: 0.8, MaxTokens: 1000, TimeoutSeconds: 15},
		{Name: "meta-llama/llama-3.3-70b-instruct:free", Temperature: 0.7, MaxTokens: 1000, TimeoutSeconds: 20},
		{Name: "gryphe/mythomax-l2-13b:free", Temperature: 0.8, MaxTokens: 1000, TimeoutSeconds: 15},
		{Name: "huggingfaceh4/zephyr-7b-beta:free", Temperature: 0.7, MaxTokens: 1000, TimeoutSeconds: 15},
	}
}

type modelsFile struct {
	Models []ModelDescriptor `yaml:"models"`
}

// LoadModels reads the priority list from a yaml file. A missing file means
// the built-in defaults; a present but unreadable or empty file is an error,
// because a half-applied model config is worse than none.
func LoadModels(log *logger.Logger, path string) ([]ModelDescriptor, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("Model config not found, using built-in priority list", "path", path)
		return DefaultModels(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}

	var parsed modelsFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse model config %s: %w", path, err)
	}
	if len(parsed.Models) == 0 {
		return nil, fmt.Errorf("model config %s lists no models", path)
	}
	for i := range parsed.Models {
		if parsed.Models[i].Name == "" {
			return nil, fmt.Errorf("model config %s: entry %d has no name", path, i)
		}
		if parsed.Models[i].MaxTokens <= 0 {
			parsed.Models[i].MaxTokens = 1000
		}
		if parsed.Models[i].TimeoutSeconds <= 0 {
			parsed.Models[i].TimeoutSeconds = 15
		}
	}
	log.Info("Loaded model priority list", "path", path, "models", len(parsed.Models))
	return parsed.Models, nil
}

// selectCandidates returns the models one Generate call will race: the
// preferred model first when it is in the list, then the remaining priority
// order, capped at maxAttempts.
func selectCandidates(models []ModelDescriptor, preferred string, maxAttempts int) []ModelDescriptor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var out []ModelDescriptor
	if preferred != "" {
		for _, m := range models {
			if m.Name == preferred {
				out = append(out, m)
				break
			}
		}
	}
	for _, m := range models {
		if len(out) >= maxAttempts {
			break
		}
		if preferred != "" && m.Name == preferred && len(out) > 0 && out[0].Name == preferred {
			continue
		}
		out = append(out, m)
	}
	return out
}
