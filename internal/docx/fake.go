package docx

import (
	"context"
	"fmt"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
)

// Fake is a deterministic Renderer used in controller tests; it never
// shells out to pandoc or a template engine, it just stamps the content so
// tests can assert on which path (templated vs generic) was taken.
type Fake struct {
	Err error
}

func (f *Fake) Render(ctx context.Context, summaryType models.SummaryType, content string, context map[string]any) ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	kind := "generic"
	if summaryType.IsTemplated() {
		kind = "templated"
	}
	return []byte(fmt.Sprintf("docx:%s:%s", kind, content)), nil
}
