// Package docx is the external collaborator boundary for document export
// (spec §1: "DOCX template rendering... out of scope"). It distinguishes
// the two rendering paths the original implements (document_generator.py,
// aTuan_utils.py): templated summary types render through a fixed .docx
// template, everything else renders generic Markdown into a .docx. The call
// contract, an HTTP client for an external renderer, and a fake live here;
// template assets and the Markdown-to-DOCX engine itself are out of scope.
package docx

import (
	"context"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
)

// Renderer turns a Summary's content into a DOCX byte stream.
type Renderer interface {
	// Render produces the DOCX bytes for summaryType given content and the
	// structured context header fields for templated types.
	Render(ctx context.Context, summaryType models.SummaryType, content string, context map[string]any) ([]byte, error)
}
