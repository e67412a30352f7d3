package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/rockiesmagicnumber/file-reorganizer/internal"
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/classifier"
)

func TestLayout_Paths(t *testing.T) {
	l := New(afero.NewMemMapFs(), "/src/", "/out", "")

	testCases := []struct {
		name, got, want string
	}{
		{"root", l.Root(), "/out/SokkaCorp"},
		{"logs", l.Logs(), "/out/SokkaCorp/Logs"},
		{"processed photos", l.ProcessedCategory(classifier.Photo), "/out/SokkaCorp/Processed/Photos"},
		{"errors misc", l.Errors(classifier.Misc), "/out/SokkaCorp/Errors/Misc"},
		{"errors archive", l.Errors(classifier.Archive), "/out/SokkaCorp/Errors/Misc"},
		{"unzipped", l.Unzipped(), "/out/SokkaCorp/Unzipped"},
		{"index", l.IndexFile(), "/out/SokkaCorp/processed-files.json"},
		{"history", l.HistoryFile(), "/out/SokkaCorp/history.db"},
		{"music", l.MusicDir("Artist", "Album"), "/out/SokkaCorp/Processed/Music/Artist/Album"},
		{"source", l.Source(), "/src"},
	}

	for _, tc := range testCases {
		if tc.got != filepath.FromSlash(tc.want) {
			t.Errorf("%s = %s, want %s", tc.name, tc.got, tc.want)
		}
	}
}

func TestLayout_DatedDir(t *testing.T) {
	l := New(afero.NewMemMapFs(), "/src", "/out", "Lib")
	date := time.Date(2024, time.March, 2, 23, 59, 0, 0, time.UTC)

	got := l.DatedDir(classifier.Video, date)
	want := filepath.FromSlash("/out/Lib/Processed/Videos/2024/03/02")
	if got != want {
		t.Errorf("DatedDir() = %s, want %s", got, want)
	}
}

func TestCategoryFolder(t *testing.T) {
	want := map[classifier.Category]string{
		classifier.Photo:   "Photos",
		classifier.Video:   "Videos",
		classifier.Music:   "Music",
		classifier.Misc:    "Misc",
		classifier.Archive: "Misc",
	}
	for cat, folder := range want {
		if got := CategoryFolder(cat); got != folder {
			t.Errorf("CategoryFolder(%v) = %s, want %s", cat, got, folder)
		}
	}
}

func TestLayout_Ensure(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := New(fs, "/src", "/out", "")

	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	// 重复调用不应出错
	if err := l.Ensure(); err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}

	for _, dir := range []string{
		l.Logs(), l.Unzipped(),
		l.ProcessedCategory(classifier.Photo), l.ProcessedCategory(classifier.Music),
		l.Errors(classifier.Video), l.Errors(classifier.Misc),
	} {
		if ok, _ := afero.DirExists(fs, dir); !ok {
			t.Errorf("Expected directory %s to exist", dir)
		}
	}
}

func TestLayout_Ensure_ReadOnlyOutput(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	l := New(fs, "/src", "/out", "")

	err := l.Ensure()
	if !errors.Is(err, ErrInaccessible) {
		t.Fatalf("Ensure() error = %v, want ErrInaccessible", err)
	}
}

func TestLayout_CheckSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/file.txt", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := fs.MkdirAll("/src", 0755); err != nil {
		t.Fatal(err)
	}

	if err := New(fs, "/src", "/out", "").CheckSource(); err != nil {
		t.Errorf("CheckSource() error = %v", err)
	}
	if err := New(fs, "/missing", "/out", "").CheckSource(); !errors.Is(err, ErrInaccessible) {
		t.Errorf("CheckSource(missing) error = %v", err)
	}
	if err := New(fs, "/file.txt", "/out", "").CheckSource(); !errors.Is(err, ErrInaccessible) {
		t.Errorf("CheckSource(file) error = %v", err)
	}
}

func TestLayout_RootInSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	if !New(fs, "/data", "/data", "").RootInSource() {
		t.Error("Expected root nested in source")
	}
	if New(fs, "/data/in", "/data/out", "").RootInSource() {
		t.Error("Expected root outside source")
	}
}

func seedSource(t *testing.T, fs afero.Fs) {
	t.Helper()
	if err := fs.MkdirAll("/src/nested", 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"/src/a.jpg":         "photo",
		"/src/nested/b.mp3":  "music",
		"/src/nested/c.text": "misc",
	}
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("创建测试文件失败: %v", err)
		}
	}
}

func TestPrepareWorkingSource_WritableAuto(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	l := New(fs, "/src", "/out", "")

	errs, err := l.PrepareWorkingSource(internal.WorkingCopyAuto)
	if err != nil || len(errs) != 0 {
		t.Fatalf("PrepareWorkingSource() = %v, %v", errs, err)
	}
	if l.Source() != "/src" {
		t.Errorf("Writable source should be used in place, got %s", l.Source())
	}
}

func TestPrepareWorkingSource_ReadOnlyAuto(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	if err := fs.Chmod("/src", os.ModeDir|0555); err != nil {
		t.Fatal(err)
	}
	l := New(fs, "/src", "/out", "")

	errs, err := l.PrepareWorkingSource(internal.WorkingCopyAuto)
	if err != nil || len(errs) != 0 {
		t.Fatalf("PrepareWorkingSource() = %v, %v", errs, err)
	}

	want := filepath.Join(l.Working(), "src")
	if l.Source() != want {
		t.Fatalf("Source() = %s, want %s", l.Source(), want)
	}
	data, err := afero.ReadFile(fs, filepath.Join(want, "nested", "b.mp3"))
	if err != nil || string(data) != "music" {
		t.Errorf("Expected copied file, got %q, %v", data, err)
	}
	if l.OriginalSource() != "/src" {
		t.Errorf("OriginalSource() = %s", l.OriginalSource())
	}
}

func TestPrepareWorkingSource_AlwaysSkipsNestedRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	l := New(fs, "/src", "/src", "")
	if err := afero.WriteFile(fs, filepath.Join(l.Processed(), "old.jpg"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := l.PrepareWorkingSource(internal.WorkingCopyAlways); err != nil {
		t.Fatalf("PrepareWorkingSource() error = %v", err)
	}

	count := 0
	afero.Walk(fs, l.Source(), func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
		}
		return nil
	})
	if count != 3 {
		t.Errorf("Expected 3 copied files, got %d", count)
	}
}

func TestPrepareWorkingSource_Never(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	fs.Chmod("/src", os.ModeDir|0555)
	l := New(fs, "/src", "/out", "")

	if _, err := l.PrepareWorkingSource(internal.WorkingCopyNever); err != nil {
		t.Fatal(err)
	}
	if l.Source() != "/src" {
		t.Errorf("never policy should keep source, got %s", l.Source())
	}
}

func TestPrepareWorkingSource_MissingSource(t *testing.T) {
	l := New(afero.NewMemMapFs(), "/nope", "/out", "")
	if _, err := l.PrepareWorkingSource(internal.WorkingCopyAuto); !errors.Is(err, ErrInaccessible) {
		t.Errorf("Expected ErrInaccessible, got %v", err)
	}
}

func TestLayout_Cleanup(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	l := New(fs, "/src", "/out", "")
	if _, err := l.PrepareWorkingSource(internal.WorkingCopyAlways); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, filepath.Join(l.Unzipped(), "x_1", "y.jpg"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	if errs := l.Cleanup(); len(errs) != 0 {
		t.Fatalf("Cleanup() errors = %v", errs)
	}

	if ok, _ := afero.Exists(fs, l.Working()); ok {
		t.Error("Working copy should be removed")
	}
	if ok, _ := afero.Exists(fs, l.Unzipped()); ok {
		t.Error("Unzipped tree should be removed")
	}
	if ok, _ := afero.Exists(fs, "/src/a.jpg"); !ok {
		t.Error("Original source must survive cleanup")
	}
	if l.Source() != "/src" {
		t.Errorf("Source() after cleanup = %s", l.Source())
	}
}
