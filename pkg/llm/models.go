package llm

// Deployment describes a model deployment offered in the settings surface.
type Deployment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxTokens   int    `json:"max_tokens"`
}

// Deployments is the catalog of known deployments, in display order.
var Deployments = []Deployment{
	{Name: "o3-mini", Description: "Reasoning model for complex tasks", MaxTokens: 8192},
	{Name: "gpt-4.1", Description: "Latest GPT-4 release, balanced", MaxTokens: 128000},
	{Name: "gpt-4o", Description: "GPT-4 Omni, fast and multimodal", MaxTokens: 128000},
}

// LookupDeployment returns the catalog entry for name.
func LookupDeployment(name string) (Deployment, bool) {
	for _, d := range Deployments {
		if d.Name == name {
			return d, true
		}
	}
	return Deployment{}, false
}
