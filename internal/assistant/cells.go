package assistant

import (
	"fmt"

	"datamentor/internal/dataset"
)

// PlanCells expands a cleaning plan into the notebook cell sequence appended
// to a project: a title cell, then one explanation cell and one code cell per
// step. Cells are tagged so the UI can distinguish assistant output.
func PlanCells(plan CleaningPlan) []dataset.NotebookCell {
	cells := make([]dataset.NotebookCell, 0, 1+2*len(plan.Steps))
	cells = append(cells, dataset.NotebookCell{
		ID:       dataset.NewCellID(),
		Type:     dataset.CellMarkdown,
		Content:  fmt.Sprintf("# %s\n\nI have analyzed your dataset and mapped out a workflow to prepare it for analysis.", plan.Title),
		Metadata: map[string]any{"isAI": true},
	})
	for _, step := range plan.Steps {
		cells = append(cells, dataset.NotebookCell{
			ID:       dataset.NewCellID(),
			Type:     dataset.CellMarkdown,
			Content:  fmt.Sprintf("## %s\n%s", step.Name, step.Explanation),
			Metadata: map[string]any{"isAI": true},
		})
		cells = append(cells, dataset.NotebookCell{
			ID:       dataset.NewCellID(),
			Type:     dataset.CellCode,
			Content:  step.Code,
			Metadata: map[string]any{"isAI": true},
		})
	}
	return cells
}
