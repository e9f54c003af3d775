package ocr

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Assemble joins task texts in page order and builds the per-page report.
// Degraded pages (fallback failed after a usable primary read) contribute
// their retained primary text.
func Assemble(pages []int, tasks []PageTask, separator string) (*DocumentResult, error) {
	return assemble(pages, tasks, separator, true)
}

// AssembleStrict is Assemble without degraded text: every failed page is
// left out of the joined text.
func AssembleStrict(pages []int, tasks []PageTask, separator string) (*DocumentResult, error) {
	return assemble(pages, tasks, separator, false)
}

func assemble(pages []int, tasks []PageTask, separator string, includeDegraded bool) (*DocumentResult, error) {
	if len(tasks) != len(pages) {
		return nil, &AssemblyInconsistencyError{Want: len(pages), Got: len(tasks)}
	}

	result := &DocumentResult{
		Separator: separator,
		Pages:     make([]PageStatus, len(tasks)),
	}

	texts := make([]string, 0, len(tasks))
	for i, task := range tasks {
		if task.Page != pages[i] {
			return nil, &AssemblyInconsistencyError{
				Want:   len(pages),
				Got:    len(tasks),
				Detail: fmt.Sprintf("slot %d holds page %d, want page %d", i, task.Page, pages[i]),
			}
		}
		if !task.Status.Terminal() {
			return nil, &AssemblyInconsistencyError{
				Want:   len(pages),
				Got:    len(tasks),
				Detail: fmt.Sprintf("page %d is still %s", task.Page, task.Status),
			}
		}

		row := PageStatus{
			Page:     task.Page,
			Status:   task.Status,
			Mode:     task.Mode,
			Degraded: task.Degraded,
			Attempts: task.Attempts,
			Layout:   task.Layout,
		}
		if task.Err != nil {
			row.Error = task.Err.Error()
		}
		if task.HasText(includeDegraded) {
			texts = append(texts, task.Text)
			row.Chars = utf8.RuneCountInString(task.Text)
		}
		result.Pages[i] = row
	}

	result.Text = strings.Join(texts, separator)
	return result, nil
}
