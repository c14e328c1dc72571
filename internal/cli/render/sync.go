package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// SyncRenderer handles rendering of sync results
type SyncRenderer struct {
	out io.Writer
}

// NewSyncRenderer creates a new sync renderer
func NewSyncRenderer(out io.Writer) *SyncRenderer {
	return &SyncRenderer{out: out}
}

// RenderSyncResult renders the result of a manifest sync
func (r *SyncRenderer) RenderSyncResult(results []usecase.RecordResult) error {
	if len(results) == 0 {
		fmt.Fprintln(r.out, "No proxied contracts in the manifest")
		return nil
	}

	for _, result := range results {
		if result.Status == usecase.RecordWritten {
			color.New(color.FgGreen).Fprintf(r.out, "  ✓ %s", result.Name)
			fmt.Fprintf(r.out, " → %s\n", result.Implementation.Hex())
			continue
		}
		fmt.Fprintf(r.out, "  = %s up to date (%s)\n", result.Name, result.Implementation.Hex())
	}

	written := lo.CountBy(results, func(result usecase.RecordResult) bool {
		return result.Status == usecase.RecordWritten
	})

	fmt.Fprintln(r.out)
	if written == 0 {
		color.New(color.FgGreen).Fprintln(r.out, "✓ Manifest already matches the chain")
	} else {
		color.New(color.FgGreen).Fprintf(r.out, "✓ Manifest synced, %d of %d entries updated\n", written, len(results))
	}
	return nil
}
