package extractor

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/maltedev/tramite-watcher/internal/parser"
)

// Selectors holds every markup assumption about the tracking page. The site
// changes between releases, so the lists can be overridden from a YAML file
// without a rebuild.
type Selectors struct {
	InputCandidates  []string `yaml:"input_candidates"`
	SubmitCandidates []string `yaml:"submit_candidates"`
	ResultSelectors  []string `yaml:"result_selectors"`
	ActiveSelectors  []string `yaml:"active_selectors"`
	Stages           []string `yaml:"stages"`
	Delimiter        string   `yaml:"delimiter"`
	MinResultLength  int      `yaml:"min_result_length"`
	MaxStatusLength  int      `yaml:"max_status_length"`
}

func DefaultSelectors() *Selectors {
	return &Selectors{
		// declared type, then name, placeholder and id substrings
		InputCandidates: []string{
			`input[type="number"]`,
			`input[type="search"]`,
			`input[name*="tramite" i]`,
			`input[name*="dni" i]`,
			`input[placeholder*="trámite" i]`,
			`input[placeholder*="tramite" i]`,
			`input[id*="tramite" i]`,
			`input[type="text"]`,
		},
		SubmitCandidates: []string{
			`button:has-text("Consultar")`,
			`button:has-text("Buscar")`,
			`input[type="submit"][value*="Consultar"]`,
			`input[type="submit"][value*="Buscar"]`,
			`button[type="submit"]`,
			`input[type="submit"]`,
		},
		ResultSelectors: []string{
			`[class*="estado"]`,
			`[id*="estado"]`,
			`[class*="status"]`,
			`[class*="resultado"]`,
			`[class*="result"]`,
			`[id*="result"]`,
			`.alert`,
		},
		ActiveSelectors: []string{
			`[aria-current]:not([aria-current="false"])`,
			`.active`,
			`.current`,
			`.selected`,
		},
		Stages: []string{
			"Inicio",
			"Verificación",
			"Producción",
			"Empaquetado",
			"Distribución",
			"Envío",
			"Retiro",
			"Verification",
			"Production",
			"Packaging",
			"Shipping",
			"Pickup",
		},
		Delimiter:       " | ",
		MinResultLength: 3,
		MaxStatusLength: 500,
	}
}

// LoadSelectors reads overrides from path and fills anything left out with
// the defaults. An empty path returns the defaults.
func LoadSelectors(path string) (*Selectors, error) {
	defaults := DefaultSelectors()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file: %w", err)
	}

	var s Selectors
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse selectors file %s: %w", path, err)
	}

	if err := mergo.Merge(&s, defaults); err != nil {
		return nil, fmt.Errorf("failed to merge selector defaults: %w", err)
	}

	return &s, nil
}

func (s *Selectors) ParserOptions() parser.Options {
	return parser.Options{
		ResultSelectors: s.ResultSelectors,
		ActiveSelectors: s.ActiveSelectors,
		Stages:          s.Stages,
		Delimiter:       s.Delimiter,
		MinResultLength: s.MinResultLength,
		MaxStatusLength: s.MaxStatusLength,
	}
}
