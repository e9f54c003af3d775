package ocr

import (
	"errors"
	"testing"

	"github.com/jackzampolin/pageocr/internal/providers"
)

func TestAssemble(t *testing.T) {
	ok := func(page int, text string) PageTask {
		return PageTask{Page: page, Status: StatusSucceeded, Mode: providers.ModeFreeOCR, Text: text, Attempts: 1}
	}

	t.Run("joins in page order with separator", func(t *testing.T) {
		tasks := []PageTask{ok(3, "three"), ok(1, "one")}

		result, err := Assemble([]int{3, 1}, tasks, DefaultPageSeparator)
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if result.Text != "three\n\n---\n\none" {
			t.Errorf("Text = %q", result.Text)
		}
		if result.Separator != DefaultPageSeparator {
			t.Errorf("Separator = %q", result.Separator)
		}
		if result.Pages[0].Page != 3 || result.Pages[1].Page != 1 {
			t.Errorf("Pages = %+v", result.Pages)
		}
		if result.Pages[0].Chars != 5 {
			t.Errorf("Chars = %d, want 5", result.Pages[0].Chars)
		}
	})

	t.Run("failed pages keep their error but no text", func(t *testing.T) {
		tasks := []PageTask{
			ok(1, "one"),
			{Page: 2, Status: StatusFailed, Err: &RenderError{Page: 2, Err: errors.New("boom")}},
			ok(3, "three"),
		}

		result, err := Assemble([]int{1, 2, 3}, tasks, "|")
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if result.Text != "one|three" {
			t.Errorf("Text = %q", result.Text)
		}
		row := result.Pages[1]
		if row.Status != StatusFailed || row.Error == "" || row.Chars != 0 {
			t.Errorf("failed row = %+v", row)
		}
		if failed := result.Failed(); len(failed) != 1 || failed[0].Page != 2 {
			t.Errorf("Failed() = %+v", failed)
		}
	})

	t.Run("fallback pages contribute text", func(t *testing.T) {
		tasks := []PageTask{
			{Page: 1, Status: StatusFallbackSucceeded, Mode: providers.ModeGrounding, Text: "grounded", Attempts: 2},
		}
		result, err := Assemble([]int{1}, tasks, "|")
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if result.Text != "grounded" || result.Pages[0].Mode != providers.ModeGrounding {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("degraded pages", func(t *testing.T) {
		tasks := []PageTask{
			ok(1, "one"),
			{Page: 2, Status: StatusFailed, Degraded: true, Mode: providers.ModeFreeOCR, Text: "weak", Err: errors.New("grounding down")},
		}

		lenient, err := Assemble([]int{1, 2}, tasks, "|")
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if lenient.Text != "one|weak" {
			t.Errorf("Assemble Text = %q", lenient.Text)
		}
		if !lenient.Pages[1].Degraded || lenient.Pages[1].Status != StatusFailed {
			t.Errorf("degraded row = %+v", lenient.Pages[1])
		}

		strict, err := AssembleStrict([]int{1, 2}, tasks, "|")
		if err != nil {
			t.Fatalf("AssembleStrict() error = %v", err)
		}
		if strict.Text != "one" {
			t.Errorf("AssembleStrict Text = %q", strict.Text)
		}
	})

	t.Run("all pages failed", func(t *testing.T) {
		tasks := []PageTask{
			{Page: 1, Status: StatusFailed, Err: errors.New("a")},
			{Page: 2, Status: StatusFailed, Err: errors.New("b")},
		}
		result, err := Assemble([]int{1, 2}, tasks, DefaultPageSeparator)
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if result.Text != "" {
			t.Errorf("Text = %q, want empty", result.Text)
		}
		if len(result.Failed()) != 2 {
			t.Errorf("Failed() = %+v", result.Failed())
		}
	})

	t.Run("no pages", func(t *testing.T) {
		result, err := Assemble(nil, nil, DefaultPageSeparator)
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if result.Text != "" || len(result.Pages) != 0 {
			t.Errorf("result = %+v", result)
		}
	})
}

func TestAssemble_Inconsistency(t *testing.T) {
	tests := []struct {
		name  string
		pages []int
		tasks []PageTask
	}{
		{
			name:  "count mismatch",
			pages: []int{1, 2},
			tasks: []PageTask{{Page: 1, Status: StatusSucceeded}},
		},
		{
			name:  "order mismatch",
			pages: []int{1, 2},
			tasks: []PageTask{{Page: 2, Status: StatusSucceeded}, {Page: 1, Status: StatusSucceeded}},
		},
		{
			name:  "non-terminal task",
			pages: []int{1},
			tasks: []PageTask{{Page: 1, Status: StatusRunning}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.pages, tt.tasks, "|")
			var inconsistency *AssemblyInconsistencyError
			if !errors.As(err, &inconsistency) {
				t.Fatalf("expected AssemblyInconsistencyError, got %v", err)
			}
			if inconsistency.Want != len(tt.pages) || inconsistency.Got != len(tt.tasks) {
				t.Errorf("Want/Got = %d/%d", inconsistency.Want, inconsistency.Got)
			}
		})
	}
}
