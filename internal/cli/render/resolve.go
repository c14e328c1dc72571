package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// ResolveRenderer renders resolved logical contracts
type ResolveRenderer struct {
	out  io.Writer
	json bool
}

// NewResolveRenderer creates a new resolve renderer
func NewResolveRenderer(out io.Writer, asJSON bool) *ResolveRenderer {
	return &ResolveRenderer{out: out, json: asJSON}
}

// RenderContract renders one resolved contract
func (r *ResolveRenderer) RenderContract(contract *models.LogicalContract) error {
	if r.json {
		view := struct {
			Name           string                `json:"name"`
			Address        string                `json:"address"`
			ProxyAddress   string                `json:"proxyAddress,omitempty"`
			Implementation string                `json:"implementation"`
			ContractName   string                `json:"contractName,omitempty"`
			Source         models.ContractSource `json:"source"`
		}{
			Name:           contract.Name,
			Address:        contract.Address.Hex(),
			Implementation: contract.Implementation.Hex(),
			ContractName:   contract.ContractName,
			Source:         contract.Source,
		}
		if contract.IsProxied() {
			view.ProxyAddress = contract.ProxyAddress.Hex()
		}
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	fmt.Fprintf(r.out, "%s\n", color.New(color.FgGreen, color.Bold).Sprint(contract.Name))
	fmt.Fprintf(r.out, "  Address:        %s\n", contract.Address.Hex())
	if contract.IsProxied() {
		fmt.Fprintf(r.out, "  Implementation: %s %s\n", contract.Implementation.Hex(), color.New(color.Faint).Sprint("(read from proxy)"))
	}
	if contract.ContractName != "" {
		fmt.Fprintf(r.out, "  Contract:       %s\n", contract.ContractName)
	}
	switch contract.Source {
	case models.SourceTestManifest:
		fmt.Fprintln(r.out, FormatWarning("Resolved from a Test deployment record"))
	case models.SourcePublic:
		fmt.Fprintln(r.out, FormatWarning("Resolved from the live network registry"))
	}
	return nil
}
