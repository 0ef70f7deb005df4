package state

import (
	"encoding/json"
	"fmt"
)

// ShowOutput represents the structure of the JSON output from
// `terraform show -json`. A missing Values section means no state has been
// deployed yet, which is valid and yields zero resources.
type ShowOutput struct {
	Values *StateValues `json:"values,omitempty"`
}

// StateValues holds the root of the module tree.
type StateValues struct {
	RootModule *Module `json:"root_module,omitempty"`
}

// Module is a Terraform module, which can contain resources and child modules.
type Module struct {
	Resources    []*Resource `json:"resources,omitempty"`
	ChildModules []*Module   `json:"child_modules,omitempty"`
}

// Resource is a single resource in the reported state. SchemaVersion is kept
// raw so that an explicit 0 survives projection while an absent field stays
// absent.
type Resource struct {
	Address         string          `json:"address"`
	Mode            string          `json:"mode,omitempty"`
	Type            string          `json:"type,omitempty"`
	Name            string          `json:"name,omitempty"`
	ProviderName    string          `json:"provider_name,omitempty"`
	SchemaVersion   json.RawMessage `json:"schema_version,omitempty"`
	Values          *Node           `json:"values,omitempty"`
	SensitiveValues *Marker         `json:"sensitive_values,omitempty"`
}

// ParseShowOutput unmarshals the output of `terraform show -json`.
func ParseShowOutput(data []byte) (*ShowOutput, error) {
	var out ShowOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal terraform show JSON: %w", err)
	}
	return &out, nil
}
