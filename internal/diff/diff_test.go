package diff

import (
	"strings"
	"testing"
)

const sampleDiff = `diff --git a/src/main/java/App.java b/src/main/java/App.java
index 1234567..89abcde 100644
--- a/src/main/java/App.java
+++ b/src/main/java/App.java
@@ -10,4 +10,5 @@ public class App {
 	public static void main(String[] args) {
-		System.out.println("hello");
+		System.out.println("hello, world");
+		System.exit(0);
 	}
diff --git a/src/main/java/NewFile.java b/src/main/java/NewFile.java
new file mode 100644
index 0000000..f00ba47
--- /dev/null
+++ b/src/main/java/NewFile.java
@@ -0,0 +1,3 @@
+public class NewFile {
+	// placeholder
+}
diff --git a/scripts/Removed.py b/scripts/Removed.py
deleted file mode 100644
index cafe123..0000000
--- a/scripts/Removed.py
+++ /dev/null
@@ -1,2 +0,0 @@
-import os
-print(os.getcwd())
diff --git a/docs/old-name.md b/docs/new-name.md
similarity index 100%
rename from docs/old-name.md
rename to docs/new-name.md
`

func TestExtractSampleDiff(t *testing.T) {
	meta := Extract(sampleDiff)

	if len(meta.Files) != 4 {
		t.Fatalf("Extract() parsed %d files, want 4", len(meta.Files))
	}

	want := []FileDiff{
		{FilePath: "src/main/java/App.java", ChangeType: ChangeTypeModify, Language: LanguageJava, LinesAdded: 2, LinesDeleted: 1},
		{FilePath: "src/main/java/NewFile.java", ChangeType: ChangeTypeAdd, Language: LanguageJava, LinesAdded: 3, LinesDeleted: 0},
		{FilePath: "scripts/Removed.py", ChangeType: ChangeTypeDelete, Language: LanguagePython, LinesAdded: 0, LinesDeleted: 2},
		{FilePath: "docs/new-name.md", OldPath: "docs/old-name.md", ChangeType: ChangeTypeRename, Language: LanguageMarkdown, LinesAdded: 0, LinesDeleted: 0},
	}
	for i, w := range want {
		got := meta.Files[i]
		if got != w {
			t.Errorf("file %d = %+v, want %+v", i, got, w)
		}
	}

	if meta.Stats.FilesChanged != 4 {
		t.Errorf("FilesChanged = %d, want 4", meta.Stats.FilesChanged)
	}
	if meta.Stats.LinesAdded != 5 {
		t.Errorf("LinesAdded = %d, want 5", meta.Stats.LinesAdded)
	}
	if meta.Stats.LinesDeleted != 3 {
		t.Errorf("LinesDeleted = %d, want 3", meta.Stats.LinesDeleted)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t\n"} {
		meta := Extract(raw)
		if len(meta.Files) != 0 {
			t.Errorf("Extract(%q) returned %d files, want 0", raw, len(meta.Files))
		}
		if meta.Stats != (Stats{}) {
			t.Errorf("Extract(%q) stats = %+v, want zero", raw, meta.Stats)
		}
	}
}

func TestExtractBinaryFile(t *testing.T) {
	raw := strings.Join([]string{
		"diff --git a/assets/logo.png b/assets/logo.png",
		"index 1111111..2222222 100644",
		"Binary files a/assets/logo.png and b/assets/logo.png differ",
		"",
	}, "\n")

	meta := Extract(raw)
	if len(meta.Files) != 1 {
		t.Fatalf("Extract() parsed %d files, want 1", len(meta.Files))
	}
	f := meta.Files[0]
	if !f.IsBinary {
		t.Error("IsBinary = false, want true")
	}
	if f.LinesAdded != 0 || f.LinesDeleted != 0 {
		t.Errorf("binary file counted %d/%d lines, want 0/0", f.LinesAdded, f.LinesDeleted)
	}
	if f.Language != LanguageUnknown {
		t.Errorf("Language = %s, want UNKNOWN", f.Language)
	}
}

func TestExtractBinaryNewFileStaysAdd(t *testing.T) {
	raw := strings.Join([]string{
		"diff --git a/assets/icon.png b/assets/icon.png",
		"new file mode 100644",
		"index 0000000..2222222",
		"Binary files /dev/null and b/assets/icon.png differ",
		"",
	}, "\n")

	meta := Extract(raw)
	if len(meta.Files) != 1 {
		t.Fatalf("Extract() parsed %d files, want 1", len(meta.Files))
	}
	f := meta.Files[0]
	if f.ChangeType != ChangeTypeAdd {
		t.Errorf("ChangeType = %s, want ADD", f.ChangeType)
	}
	if !f.IsBinary {
		t.Error("IsBinary = false, want true")
	}
}

func TestExtractRenameWithEdits(t *testing.T) {
	raw := strings.Join([]string{
		"diff --git a/pkg/util.go b/pkg/helpers.go",
		"similarity index 90%",
		"rename from pkg/util.go",
		"rename to pkg/helpers.go",
		"index 3333333..4444444 100644",
		"--- a/pkg/util.go",
		"+++ b/pkg/helpers.go",
		"@@ -1,3 +1,3 @@",
		" package pkg",
		"-func Old() {}",
		"+func New() {}",
		"",
	}, "\n")

	meta := Extract(raw)
	if len(meta.Files) != 1 {
		t.Fatalf("Extract() parsed %d files, want 1", len(meta.Files))
	}
	f := meta.Files[0]
	if f.ChangeType != ChangeTypeRename {
		t.Errorf("ChangeType = %s, want RENAME", f.ChangeType)
	}
	if f.OldPath != "pkg/util.go" || f.FilePath != "pkg/helpers.go" {
		t.Errorf("paths = %q -> %q, want pkg/util.go -> pkg/helpers.go", f.OldPath, f.FilePath)
	}
	if f.LinesAdded != 1 || f.LinesDeleted != 1 {
		t.Errorf("lines = +%d/-%d, want +1/-1", f.LinesAdded, f.LinesDeleted)
	}
}

func TestExtractMultipleHunksAccumulate(t *testing.T) {
	raw := strings.Join([]string{
		"diff --git a/main.go b/main.go",
		"index 5555555..6666666 100644",
		"--- a/main.go",
		"+++ b/main.go",
		"@@ -1,3 +1,4 @@",
		" package main",
		"+import \"fmt\"",
		"@@ -10,4 +11,4 @@",
		"-	old()",
		"+	fmt.Println()",
		"",
	}, "\n")

	meta := Extract(raw)
	if len(meta.Files) != 1 {
		t.Fatalf("Extract() parsed %d files, want 1", len(meta.Files))
	}
	f := meta.Files[0]
	if f.LinesAdded != 2 || f.LinesDeleted != 1 {
		t.Errorf("lines = +%d/-%d, want +2/-1", f.LinesAdded, f.LinesDeleted)
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		path string
		want Language
	}{
		{"src/App.java", LanguageJava},
		{"scripts/run.py", LanguagePython},
		{"web/index.ts", LanguageTypeScript},
		{"README.md", LanguageMarkdown},
		{"config.yml", LanguageYAML},
		{"config.yaml", LanguageYAML},
		{"install.sh", LanguageShell},
		{"main.go", LanguageGo},
		{"Makefile", LanguageUnknown},
		{"archive.tar.gz", LanguageUnknown},
	}
	for _, tc := range cases {
		if got := DetectLanguage(tc.path); got != tc.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", tc.path, got, tc.want)
		}
	}
}
