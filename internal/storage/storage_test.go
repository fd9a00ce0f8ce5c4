package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalUpload(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}

	data := []byte("%PDF-1.3\n%fake\n")
	url, err := l.Upload(context.Background(), "results/4/abc.pdf", data)
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if want := "http://localhost:8080/files/results/4/abc.pdf"; url != want {
		t.Errorf("Upload() url = %q, want %q", url, want)
	}

	got, err := os.ReadFile(filepath.Join(dir, "results", "4", "abc.pdf"))
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("stored %q, want %q", got, data)
	}
	if _, err := os.Stat(filepath.Join(dir, "results", "4", "abc.pdf.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	// Re-uploading replaces the file.
	if _, err := l.Upload(context.Background(), "results/4/abc.pdf", []byte("%PDF-1.3\n%v2\n")); err != nil {
		t.Fatalf("second Upload() error: %v", err)
	}
}

func TestLocalRejectsEscapingNames(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"../outside.pdf", "results/../../x", "", "/"} {
		if _, err := l.Upload(context.Background(), name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Upload(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte("%PDF-1.3\n"), "application/pdf"},
		{[]byte("hello"), "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		if got := ContentType(tt.data); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestMinioURL(t *testing.T) {
	m := &Minio{cfg: MinioConfig{Endpoint: "s3.local:9000", Bucket: "results"}}
	if got := m.URL("a/b.pdf"); got != "http://s3.local:9000/results/a/b.pdf" {
		t.Errorf("URL() = %q", got)
	}
	m.cfg.UseSSL = true
	m.cfg.PublicURL = "https://cdn.example/"
	if got := m.URL("a/b.pdf"); got != "https://cdn.example/a/b.pdf" {
		t.Errorf("URL() with public URL = %q", got)
	}
}
