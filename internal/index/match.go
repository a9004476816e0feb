package index

// MatchVisitor receives one (file, name, stream) tuple during a Matches
// traversal: the tuple's display text (a bare name, a full path, or a
// stream/attribute suffix depending on the call's flags), whether that text
// is ascii-directional ASCII, the tuple's identifying Key, and its
// directory depth. A nonzero return requests recursion into the tuple's
// children, if it is a directory (spec.md §4.6: "The visitor returns a
// nonzero traversal token to request recursion into a directory's
// children; otherwise only the current record is visited").
type MatchVisitor func(text []byte, isASCII bool, key Key, depth int) int

// Matches enumerates every (file, name, stream) tuple reachable from the
// root by walking each record's child-link list, grounded on spec.md §4.6's
// matches(visitor, match_paths, match_streams, match_attributes) contract.
//
// matchPaths renders each tuple's text as a full path (via GetPath) instead
// of a bare name, suppressing the root's own name the same way GetPath
// does. matchStreams additionally visits each record's named alternate
// $DATA streams as their own tuples; matchAttributes additionally visits
// non-$DATA NTFS attributes the parser recorded as streams. A record's
// child list already contains exactly one ChildInfo per hardlink name
// (spec.md §3 "The child-link list of a parent contains exactly one entry
// per (child, name_within_child) pair"), so walking it — rather than a
// record's own name chain — is what produces Scenario 2's "two distinct
// keys for the same FRS" when a file is hardlinked under two parents.
func (s *Store) Matches(visitor MatchVisitor, matchPaths, matchStreams, matchAttributes bool) {
	s.MatchesFrom("", visitor, matchPaths, matchStreams, matchAttributes)
}

// MatchesFrom is Matches with an explicit volume root-path prefix (e.g.
// "C:") for full-path rendering; an Index threads its own RootPath through
// here. Matches itself passes "" for callers (tests, mostly) that only care
// about relative traversal shape.
func (s *Store) MatchesFrom(rootPath string, visitor MatchVisitor, matchPaths, matchStreams, matchAttributes bool) {
	rootIdx, ok := s.RecordIndexForFRS(RootFRS)
	if !ok {
		return
	}
	token := s.visitOne(rootIdx, Unspecified, 0, rootPath, visitor, matchPaths, matchStreams, matchAttributes)
	if token != 0 && s.Records[rootIdx].Std.IsDirectory() {
		s.visitChildren(rootIdx, 1, rootPath, visitor, matchPaths, matchStreams, matchAttributes)
	}
}

func (s *Store) visitChildren(parentIdx uint32, depth int, rootPath string, visitor MatchVisitor, matchPaths, matchStreams, matchAttributes bool) {
	for i := s.Records[parentIdx].FirstChild; i != Sentinel; i = s.Children[i].Next {
		ch := s.Children[i]
		ordinal, ok := s.LocalNameOrdinal(ch.ChildRecordIndex, ch.NameIndexWithinChild)
		if !ok {
			continue // the name this child-link refers to is gone; skip rather than fabricate one
		}
		token := s.visitOne(ch.ChildRecordIndex, ordinal, depth, rootPath, visitor, matchPaths, matchStreams, matchAttributes)
		if token != 0 && s.Records[ch.ChildRecordIndex].Std.IsDirectory() {
			s.visitChildren(ch.ChildRecordIndex, depth+1, rootPath, visitor, matchPaths, matchStreams, matchAttributes)
		}
	}
}

// visitOne visits a single (record, name) tuple, or — when matchStreams or
// matchAttributes request it — one tuple per qualifying stream of that
// record (spec.md §8 Scenario 3: with match_streams, a file's unnamed
// $DATA and its named "notes" alternate stream each produce their own
// key). The primary stream's tuple carries the bare path/name exactly as a
// stream-unaware caller would see it, and its visitor token is what
// directory recursion keys off.
func (s *Store) visitOne(recordIdx, nameOrdinal uint32, depth int, rootPath string, visitor MatchVisitor, matchPaths, matchStreams, matchAttributes bool) int {
	if (!matchStreams && !matchAttributes) || s.Records[recordIdx].StreamCount == 0 {
		key := MakeKey(recordIdx, nameOrdinal, Unspecified, 0)
		text, ascii := s.matchText(recordIdx, nameOrdinal, rootPath, matchPaths)
		return visitor(text, ascii, key, depth)
	}

	var recurseToken int
	streamOrdinal := uint32(0)
	for i := s.Records[recordIdx].FirstStream; i != Sentinel; i = s.Streams[i].Next {
		st := s.Streams[i]
		qualifies := st.TypeID == 0 ||
			(matchStreams && st.TypeID == dataStreamTypeID) ||
			(matchAttributes && st.TypeID != 0 && st.TypeID != dataStreamTypeID)
		if qualifies {
			key := MakeKey(recordIdx, nameOrdinal, streamOrdinal, 0)
			text, ascii := s.matchStreamText(recordIdx, nameOrdinal, streamOrdinal, rootPath, matchPaths)
			token := visitor(text, ascii, key, depth)
			if st.TypeID == 0 {
				recurseToken = token
			}
		}
		streamOrdinal++
	}
	return recurseToken
}

func (s *Store) matchText(recordIdx, nameOrdinal uint32, rootPath string, matchPaths bool) ([]byte, bool) {
	if matchPaths {
		key := MakeKey(recordIdx, nameOrdinal, Unspecified, 0)
		path, ok := s.GetPath(key, rootPath)
		if !ok {
			path = ""
		}
		return []byte(path), true
	}
	if nameOrdinal == Unspecified {
		return nil, true // root: own name always suppressed
	}
	nameGlobalIdx, ok := s.NameAtOrdinal(recordIdx, nameOrdinal)
	if !ok {
		return nil, true
	}
	li := s.Names[nameGlobalIdx]
	return s.NameBytes(li), li.IsASCII
}

func (s *Store) matchStreamText(recordIdx, nameOrdinal, streamOrdinal uint32, rootPath string, matchPaths bool) ([]byte, bool) {
	if matchPaths {
		key := MakeKey(recordIdx, nameOrdinal, streamOrdinal, 0)
		path, ok := s.GetPath(key, rootPath)
		if !ok {
			path = ""
		}
		return []byte(path), true
	}
	streamGlobalIdx, ok := s.StreamAtOrdinal(recordIdx, streamOrdinal)
	if !ok {
		return nil, true
	}
	st := s.Streams[streamGlobalIdx]
	if st.TypeID == 0 {
		return s.matchText(recordIdx, nameOrdinal, rootPath, false)
	}
	return s.StreamNameBytes(st), st.IsASCII
}
