package search

import "testing"

func TestCompileVerbatim(t *testing.T) {
	p, err := Compile("report.txt", Verbatim, false, false)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	if !p.Match([]byte("final_report.txt.bak"), true) {
		t.Errorf("expected substring match")
	}
	if p.Match([]byte("REPORT.TXT"), true) {
		t.Errorf("expected case-sensitive mismatch")
	}
}

func TestCompileVerbatimCaseInsensitiveWholeString(t *testing.T) {
	p, err := Compile("report.txt", Verbatim, true, true)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	if !p.Match([]byte("REPORT.TXT"), true) {
		t.Errorf("expected case-insensitive whole-string match")
	}
	if p.Match([]byte("final_report.txt"), true) {
		t.Errorf("whole-string match should reject a substring occurrence")
	}
}

func TestCompileGlob(t *testing.T) {
	p, err := Compile("*.txt", Glob, false, true)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	if !p.Match([]byte("notes.txt"), true) {
		t.Errorf("expected glob match")
	}
	if p.Match([]byte("notes.txtx"), true) {
		t.Errorf("whole-string glob should not match a trailing extra character")
	}
}

func TestCompileGlobQuestionMark(t *testing.T) {
	p, err := Compile("file?.log", Glob, false, true)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	if !p.Match([]byte("file1.log"), true) {
		t.Errorf("expected ? to match a single character")
	}
	if p.Match([]byte("file12.log"), true) {
		t.Errorf("? should not match two characters")
	}
}

func TestCompileRegex(t *testing.T) {
	p, err := Compile(`^img_\d+\.png$`, Regex, false, false)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	if !p.Match([]byte("img_042.png"), true) {
		t.Errorf("expected regex match")
	}
	if p.Match([]byte("img_abc.png"), true) {
		t.Errorf("expected regex mismatch on non-digit run")
	}
}

func TestCompileRegexInvalid(t *testing.T) {
	if _, err := Compile("(unterminated", Regex, false, false); err == nil {
		t.Errorf("expected an error for an invalid regex")
	}
}

func TestMatchDecodesUTF16(t *testing.T) {
	p, err := Compile("caf", Verbatim, false, false)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	// "café.txt" encoded as UTF-16LE.
	raw := []byte{'c', 0, 'a', 0, 'f', 0, 0xE9, 0, '.', 0, 't', 0, 'x', 0, 't', 0}
	if !p.Match(raw, false) {
		t.Errorf("expected substring match against decoded UTF-16LE text")
	}
}
