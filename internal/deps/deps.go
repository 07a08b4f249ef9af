package deps

import (
	"strings"

	"bookforge/internal/config"
)

// Requirement describes an external provider bookforge may call.
type Requirement struct {
	Name        string
	Kind        string
	Description string
	Optional    bool
	// Disabled marks a provider switched off in configuration.
	Disabled bool
	// Credential is the configured API key; empty means none was supplied.
	Credential string
}

// Status reports whether a provider is usable with the current configuration.
type Status struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the providers the configuration selects.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        cfg.Text.Provider,
			Kind:        KindText,
			Description: "Writes outlines and chapters",
			Credential:  cfg.Text.APIKey,
		},
		{
			Name:        cfg.Images.Provider,
			Kind:        KindImage,
			Description: "Generates chapter illustrations",
			Optional:    true,
			Disabled:    cfg.Images.Provider == ProviderNone,
			Credential:  cfg.Images.APIKey,
		},
		{
			Name:        cfg.Images.StockProvider,
			Kind:        KindStock,
			Description: "Finds stock photos for chapters",
			Optional:    true,
			Disabled:    cfg.Images.StockProvider == ProviderNone,
			Credential:  cfg.Images.StockAPIKey,
		},
		{
			Name:        "placeholder",
			Kind:        KindPlaceholder,
			Description: "Renders a fallback illustration",
			Optional:    true,
			Disabled:    !cfg.Images.Placeholder,
			Credential:  "local",
		},
	}
}

// CheckProviders evaluates the provided requirements and reports availability.
func CheckProviders(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        strings.TrimSpace(req.Name),
			Kind:        req.Kind,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case req.Disabled:
			status.Detail = "disabled in configuration"
		case strings.TrimSpace(req.Credential) == "":
			status.Detail = "api key not configured"
		default:
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Check reports provider availability for cfg.
func Check(cfg *config.Config) []Status {
	return CheckProviders(Requirements(cfg))
}
