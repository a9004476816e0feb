package index

import "testing"

func TestEnsureRecordCreatesAndReuses(t *testing.T) {
	s := NewStore()
	idx1 := s.EnsureRecord(100)
	idx2 := s.EnsureRecord(100)
	if idx1 != idx2 {
		t.Errorf("EnsureRecord(100) returned different indices on repeat calls: %d, %d", idx1, idx2)
	}
	if s.Records[idx1].FRS != 100 {
		t.Errorf("Records[idx1].FRS = %d, want 100", s.Records[idx1].FRS)
	}

	idx3 := s.EnsureRecord(5)
	if idx3 == idx1 {
		t.Errorf("EnsureRecord(5) collided with EnsureRecord(100)'s index")
	}
	if got, ok := s.RecordIndexForFRS(5); !ok || got != idx3 {
		t.Errorf("RecordIndexForFRS(5) = (%d, %v), want (%d, true)", got, ok, idx3)
	}
}

func TestRecordIndexForFRSMissing(t *testing.T) {
	s := NewStore()
	s.EnsureRecord(5)
	if _, ok := s.RecordIndexForFRS(999); ok {
		t.Errorf("RecordIndexForFRS(999) = true for an FRS never created")
	}
}

func TestAppendNameHeadInsertsAndCountsUp(t *testing.T) {
	s := NewStore()
	idx := s.EnsureRecord(5)

	n0 := s.AppendName(idx, 5, []byte("first"), true)
	n1 := s.AppendName(idx, 5, []byte("second"), true)

	if s.Records[idx].NameCount != 2 {
		t.Fatalf("NameCount = %d, want 2", s.Records[idx].NameCount)
	}
	if s.Records[idx].FirstName != n1 {
		t.Errorf("FirstName = %d, want most-recently-appended %d", s.Records[idx].FirstName, n1)
	}
	if got := s.Names[n1].Next; got != n0 {
		t.Errorf("second name's Next = %d, want first name's index %d", got, n0)
	}
	if string(s.NameBytes(s.Names[n0])) != "first" {
		t.Errorf("NameBytes(n0) = %q, want \"first\"", s.NameBytes(s.Names[n0]))
	}
}

func TestAppendStreamHeadInsertsAndCountsUp(t *testing.T) {
	s := NewStore()
	idx := s.EnsureRecord(5)

	s.AppendStream(idx, StreamInfo{TypeID: 0})
	s2 := s.AppendStream(idx, StreamInfo{TypeID: 8})

	if s.Records[idx].StreamCount != 2 {
		t.Fatalf("StreamCount = %d, want 2", s.Records[idx].StreamCount)
	}
	if s.Records[idx].FirstStream != s2 {
		t.Errorf("FirstStream = %d, want most-recently-appended %d", s.Records[idx].FirstStream, s2)
	}
}

func TestAppendChildHeadInserts(t *testing.T) {
	s := NewStore()
	parent := s.EnsureRecord(5)
	child1 := s.EnsureRecord(100)
	child2 := s.EnsureRecord(101)

	c1 := s.AppendChild(parent, child1, 0)
	c2 := s.AppendChild(parent, child2, 0)

	if s.Records[parent].FirstChild != c2 {
		t.Errorf("FirstChild = %d, want most-recently-appended %d", s.Records[parent].FirstChild, c2)
	}
	if got := s.Children[c2].Next; got != c1 {
		t.Errorf("second child's Next = %d, want first child's index %d", got, c1)
	}
}

func TestFindStreamMatchesByTypeAndName(t *testing.T) {
	s := NewStore()
	idx := s.EnsureRecord(5)
	s.AppendStream(idx, StreamInfo{TypeID: 0})

	notesOffset := uint32(len(s.NameBuf))
	s.NameBuf = append(s.NameBuf, []byte("notes")...)
	notesIdx := s.AppendStream(idx, StreamInfo{TypeID: 8, NameOffset: notesOffset, NameLength: 5})

	if got, ok := s.FindStream(idx, 0, nil); !ok {
		t.Errorf("FindStream(0, nil) not found")
	} else if s.Streams[got].TypeID != 0 {
		t.Errorf("FindStream(0, nil) returned wrong stream")
	}

	if got, ok := s.FindStream(idx, 8, []byte("notes")); !ok || got != notesIdx {
		t.Errorf("FindStream(8, \"notes\") = (%d, %v), want (%d, true)", got, ok, notesIdx)
	}

	if _, ok := s.FindStream(idx, 8, []byte("missing")); ok {
		t.Errorf("FindStream(8, \"missing\") unexpectedly found a stream")
	}
}

func TestLocalNameOrdinalResolvesPositionInChain(t *testing.T) {
	s := NewStore()
	idx := s.EnsureRecord(5)
	n0 := s.AppendName(idx, 5, []byte("a"), true)
	n1 := s.AppendName(idx, 5, []byte("b"), true)
	n2 := s.AppendName(idx, 5, []byte("c"), true)

	// Head-insertion means the chain order, newest first, is n2, n1, n0.
	cases := []struct {
		global uint32
		want   uint32
	}{
		{n2, 0},
		{n1, 1},
		{n0, 2},
	}
	for _, c := range cases {
		got, ok := s.LocalNameOrdinal(idx, c.global)
		if !ok || got != c.want {
			t.Errorf("LocalNameOrdinal(idx, %d) = (%d, %v), want (%d, true)", c.global, got, ok, c.want)
		}
	}

	if ordinal, ok := s.NameAtOrdinal(idx, 1); !ok || ordinal != n1 {
		t.Errorf("NameAtOrdinal(idx, 1) = (%d, %v), want (%d, true)", ordinal, ok, n1)
	}
}
