package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\nfake")

// writeMinimalPDF writes a valid PDF with n empty pages.
func writeMinimalPDF(t *testing.T, path string, n int) {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n))
	obj("<< >>") // shared empty resources

	for i := 0; i < n; i++ {
		content := "BT ET"
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Resources 3 0 R /Contents %d 0 R >>", 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	t.Run("image by extension", func(t *testing.T) {
		path := filepath.Join(dir, "scan.PNG")
		if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
			t.Fatal(err)
		}

		doc, err := Open(path, Options{})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if doc.PageCount() != 1 {
			t.Errorf("PageCount() = %d, want 1", doc.PageCount())
		}
		data, err := doc.RenderPage(context.Background(), 1)
		if err != nil {
			t.Fatalf("RenderPage(1) error = %v", err)
		}
		if !bytes.Equal(data, pngHeader) {
			t.Errorf("RenderPage(1) = %q", data)
		}
		if _, err := doc.RenderPage(context.Background(), 2); err == nil {
			t.Error("expected error for page 2 of an image")
		}
	})

	t.Run("pdf page count", func(t *testing.T) {
		path := filepath.Join(dir, "doc.pdf")
		writeMinimalPDF(t, path, 3)

		doc, err := Open(path, Options{})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if doc.PageCount() != 3 {
			t.Errorf("PageCount() = %d, want 3", doc.PageCount())
		}
		if _, err := doc.RenderPage(context.Background(), 4); err == nil {
			t.Error("expected error for page past the end")
		}
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		path := filepath.Join(dir, "broken.pdf")
		if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(path, Options{}); err == nil {
			t.Error("expected error for corrupt PDF")
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "notes.docx")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(path, Options{}); err == nil {
			t.Error("expected error for .docx")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Open(filepath.Join(dir, "nope.pdf"), Options{}); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("empty image", func(t *testing.T) {
		path := filepath.Join(dir, "empty.jpg")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(path, Options{}); err == nil {
			t.Error("expected error for empty image")
		}
	})
}

func TestPDFDocument_RenderPage(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}

	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeMinimalPDF(t, path, 2)

	doc, err := OpenPDF(path, Options{DPI: 72})
	if err != nil {
		t.Fatalf("OpenPDF() error = %v", err)
	}
	data, err := doc.RenderPage(context.Background(), 2)
	if err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("rendered data is not a PNG (%d bytes)", len(data))
	}
}

func TestPDFDocument_MissingRenderer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeMinimalPDF(t, path, 1)

	doc, err := OpenPDF(path, Options{Pdftoppm: filepath.Join(t.TempDir(), "no-such-binary")})
	if err != nil {
		t.Fatalf("OpenPDF() error = %v", err)
	}
	if _, err := doc.RenderPage(context.Background(), 1); err == nil {
		t.Error("expected error when pdftoppm is missing")
	}
}

func TestIsImage(t *testing.T) {
	for _, name := range []string{"a.jpg", "a.JPEG", "a.png", "a.bmp", "a.tiff", "a.tif", "a.webp"} {
		if !IsImage(name) {
			t.Errorf("IsImage(%q) = false", name)
		}
	}
	for _, name := range []string{"a.pdf", "a.gif", "a", "png"} {
		if IsImage(name) {
			t.Errorf("IsImage(%q) = true", name)
		}
	}
}

func TestConcat(t *testing.T) {
	a := NewImageDocument("a", []byte("A"))
	b := NewImageDocument("b", []byte("B"))
	c := NewImageDocument("c", []byte("C"))

	m := Concat(a, b, c)
	if m.PageCount() != 3 {
		t.Fatalf("PageCount() = %d, want 3", m.PageCount())
	}
	for page, want := range map[int]string{1: "A", 2: "B", 3: "C"} {
		data, err := m.RenderPage(context.Background(), page)
		if err != nil {
			t.Fatalf("RenderPage(%d) error = %v", page, err)
		}
		if string(data) != want {
			t.Errorf("RenderPage(%d) = %q, want %q", page, data, want)
		}
	}
	if _, err := m.RenderPage(context.Background(), 4); err == nil {
		t.Error("expected error for page 4")
	}
}

func TestOpenAll(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"scan-10.png", "scan-2.png", "scan-1.png"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	doc, err := OpenAll(paths, Options{})
	if err != nil {
		t.Fatalf("OpenAll() error = %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("PageCount() = %d, want 3", doc.PageCount())
	}
	var got []string
	for p := 1; p <= 3; p++ {
		data, err := doc.RenderPage(context.Background(), p)
		if err != nil {
			t.Fatalf("RenderPage(%d) error = %v", p, err)
		}
		got = append(got, string(data))
	}
	if want := []string{"scan-1.png", "scan-2.png", "scan-10.png"}; !reflect.DeepEqual(got, want) {
		t.Errorf("page order = %v, want %v", got, want)
	}
}

func TestSortPathsByNumber(t *testing.T) {
	got := sortPathsByNumber([]string{"book-2.pdf", "book-1.pdf", "book-10.pdf"})
	want := []string{"book-1.pdf", "book-2.pdf", "book-10.pdf"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sortPathsByNumber() = %v, want %v", got, want)
	}
}

func TestExportPages(t *testing.T) {
	doc := Concat(
		NewImageDocument("a", []byte("A")),
		NewImageDocument("b", []byte("B")),
		NewImageDocument("c", []byte("C")),
	)
	outDir := filepath.Join(t.TempDir(), "pages")

	paths, err := ExportPages(context.Background(), doc, []int{3, 1}, outDir, 2)
	if err != nil {
		t.Fatalf("ExportPages() error = %v", err)
	}
	want := []string{PageImagePath(outDir, 3), PageImagePath(outDir, 1)}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
	data, err := os.ReadFile(PageImagePath(outDir, 3))
	if err != nil || string(data) != "C" {
		t.Errorf("page 3 file = %q, %v", data, err)
	}
	if _, err := os.Stat(PageImagePath(outDir, 2)); !os.IsNotExist(err) {
		t.Error("page 2 should not have been exported")
	}

	if _, err := ExportPages(context.Background(), doc, []int{1, 9}, outDir, 0); err == nil {
		t.Error("expected error for out-of-range page")
	}
}
