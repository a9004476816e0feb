package index

import "testing"

func TestGetPathRootHasNoStreamSuffixAndTrailingSlash(t *testing.T) {
	s := NewStore()
	rootIdx := s.EnsureRecord(RootFRS)
	s.Records[rootIdx].Std.SetDirectory()

	key := MakeKey(rootIdx, Unspecified, Unspecified, 0)
	got, ok := s.GetPath(key, `C:`)
	if !ok {
		t.Fatalf("GetPath on root = false, want true")
	}
	if got != `C:\` {
		t.Errorf("GetPath on root = %q, want %q", got, `C:\`)
	}
}

func TestGetPathSuppressesRootNameAndJoinsWithSeparator(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(RootFRS)
	fileIdx := s.EnsureRecord(100)
	s.AppendName(fileIdx, RootFRS, []byte("foo.txt"), true)

	key := MakeKey(fileIdx, 0, Unspecified, 0)
	got, ok := s.GetPath(key, `C:`)
	if !ok {
		t.Fatalf("GetPath = false, want true")
	}
	if got != `C:\foo.txt` {
		t.Errorf("GetPath = %q, want %q", got, `C:\foo.txt`)
	}
}

func TestGetPathWalksMultipleAncestorsByFirstName(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(RootFRS)

	subIdx := s.EnsureRecord(10)
	s.AppendName(subIdx, RootFRS, []byte("sub"), true)
	s.Records[subIdx].Std.SetDirectory()

	fileIdx := s.EnsureRecord(20)
	s.AppendName(fileIdx, 10, []byte("file.txt"), true)

	key := MakeKey(fileIdx, 0, Unspecified, 0)
	got, ok := s.GetPath(key, `C:`)
	if !ok {
		t.Fatalf("GetPath = false, want true")
	}
	if got != `C:\sub\file.txt` {
		t.Errorf("GetPath = %q, want %q", got, `C:\sub\file.txt`)
	}
}

func TestGetPathAppendsTrailingSlashForDirectory(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(RootFRS)
	dirIdx := s.EnsureRecord(10)
	s.AppendName(dirIdx, RootFRS, []byte("sub"), true)
	s.Records[dirIdx].Std.SetDirectory()

	key := MakeKey(dirIdx, 0, Unspecified, 0)
	got, ok := s.GetPath(key, `C:`)
	if !ok {
		t.Fatalf("GetPath = false, want true")
	}
	if got != `C:\sub\` {
		t.Errorf("GetPath = %q, want trailing backslash for a directory, got %q", got, got)
	}
}

func TestGetPathNamedDataStreamSuffix(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(RootFRS)
	fileIdx := s.EnsureRecord(100)
	s.AppendName(fileIdx, RootFRS, []byte("foo.txt"), true)

	offset := uint32(len(s.NameBuf))
	s.NameBuf = append(s.NameBuf, []byte("notes")...)
	s.AppendStream(fileIdx, StreamInfo{TypeID: dataStreamTypeID, NameOffset: offset, NameLength: 5, IsASCII: true})

	key := MakeKey(fileIdx, 0, 0, 0)
	got, ok := s.GetPath(key, `C:`)
	if !ok {
		t.Fatalf("GetPath = false, want true")
	}
	if got != `C:\foo.txt:notes` {
		t.Errorf("GetPath = %q, want %q", got, `C:\foo.txt:notes`)
	}
}

func TestGetPathNamedNonDataAttributeSuffix(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(RootFRS)
	fileIdx := s.EnsureRecord(100)
	s.AppendName(fileIdx, RootFRS, []byte("foo.txt"), true)

	reparseTypeID := uint8(0xC0 >> 4)
	offset := uint32(len(s.NameBuf))
	s.NameBuf = append(s.NameBuf, []byte("tag")...)
	s.AppendStream(fileIdx, StreamInfo{TypeID: reparseTypeID, NameOffset: offset, NameLength: 3, IsASCII: true})

	key := MakeKey(fileIdx, 0, 0, 0)
	got, ok := s.GetPath(key, `C:`)
	if !ok {
		t.Fatalf("GetPath = false, want true")
	}
	if got != `C:\foo.txt:tag:$REPARSE_POINT` {
		t.Errorf("GetPath = %q, want %q", got, `C:\foo.txt:tag:$REPARSE_POINT`)
	}
}

func TestGetPathUnnamedNonDataAttributeSuffix(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(RootFRS)
	fileIdx := s.EnsureRecord(100)
	s.AppendName(fileIdx, RootFRS, []byte("foo.txt"), true)

	reparseTypeID := uint8(0xC0 >> 4)
	s.AppendStream(fileIdx, StreamInfo{TypeID: reparseTypeID})

	key := MakeKey(fileIdx, 0, 0, 0)
	got, ok := s.GetPath(key, `C:`)
	if !ok {
		t.Fatalf("GetPath = false, want true")
	}
	if got != `C:\foo.txt::$REPARSE_POINT` {
		t.Errorf("GetPath = %q, want %q", got, `C:\foo.txt::$REPARSE_POINT`)
	}
}

func TestGetPathPrimaryStreamHasNoSuffix(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(RootFRS)
	fileIdx := s.EnsureRecord(100)
	s.AppendName(fileIdx, RootFRS, []byte("foo.txt"), true)
	s.AppendStream(fileIdx, StreamInfo{TypeID: 0})

	key := MakeKey(fileIdx, 0, 0, 0)
	got, ok := s.GetPath(key, `C:`)
	if !ok {
		t.Fatalf("GetPath = false, want true")
	}
	if got != `C:\foo.txt` {
		t.Errorf("GetPath = %q, want %q (primary stream contributes no suffix)", got, `C:\foo.txt`)
	}
}

func TestGetPathUnresolvableRecordReturnsFalse(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(RootFRS)

	key := MakeKey(999, 0, Unspecified, 0)
	if _, ok := s.GetPath(key, `C:`); ok {
		t.Errorf("GetPath for an out-of-range record index = true, want false")
	}
}

func TestCompareNameInsensitiveAllFourEncodingArms(t *testing.T) {
	asciiFoo := []byte("FOO")
	asciiFooLower := []byte("foo")
	utf16Foo := encodeNameBytes("foo", false)
	utf16FooUpper := encodeNameBytes("FOO", false)

	cases := []struct {
		name               string
		a                  []byte
		aASCII             bool
		b                  []byte
		bASCII             bool
		wantEqual          bool
	}{
		{"ascii x ascii", asciiFoo, true, asciiFooLower, true, true},
		{"ascii x utf16", asciiFoo, true, utf16Foo, false, true},
		{"utf16 x ascii", utf16FooUpper, false, asciiFooLower, true, true},
		{"utf16 x utf16", utf16Foo, false, utf16FooUpper, false, true},
	}
	for _, c := range cases {
		got := CompareNameInsensitive(c.a, c.aASCII, c.b, c.bASCII)
		if (got == 0) != c.wantEqual {
			t.Errorf("%s: CompareNameInsensitive = %d, want equal=%v", c.name, got, c.wantEqual)
		}
	}

	if got := CompareNameInsensitive([]byte("abc"), true, []byte("abd"), true); got >= 0 {
		t.Errorf("CompareNameInsensitive(\"abc\", \"abd\") = %d, want < 0", got)
	}
}
