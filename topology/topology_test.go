package topology

import "testing"

func TestAddNode(t *testing.T) {
	s := NewStore()

	if err := s.AddNode("s1", KindSwitch, ""); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if err := s.AddNode("s1", KindSwitch, ""); err != nil {
		t.Errorf("identical re-add should be idempotent, got %v", err)
	}
	if err := s.AddNode("s1", KindHost, "aa:bb"); err != ErrDuplicateNode {
		t.Errorf("expected ErrDuplicateNode for kind change, got %v", err)
	}

	if err := s.AddNode("h1", KindHost, "00:00:00:00:00:01"); err != nil {
		t.Fatalf("AddNode host failed: %v", err)
	}
	if err := s.AddNode("h2", KindHost, "00:00:00:00:00:01"); err != ErrDuplicateNode {
		t.Errorf("expected ErrDuplicateNode for MAC reuse, got %v", err)
	}
}

func TestLinks(t *testing.T) {
	s := NewStore()
	s.AddNode("s1", KindSwitch, "")
	s.AddNode("s2", KindSwitch, "")

	if err := s.AddLink("s1", "missing", 1); err != ErrUnknownNode {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
	if err := s.AddLink("s1", "s2", 1); err != nil {
		t.Fatalf("AddLink failed: %v", err)
	}
	if err := s.AddLink("s2", "s1", 2); err != ErrDuplicateLink {
		t.Errorf("expected ErrDuplicateLink for reversed pair, got %v", err)
	}
	if !s.HasLink("s2", "s1") {
		t.Errorf("link should be visible from both directions")
	}
	if w, _ := s.LinkWeight("s1", "s2"); w != 1 {
		t.Errorf("expected weight 1, got %d", w)
	}

	s.RemoveLink("s1", "s2")
	if s.HasLink("s1", "s2") {
		t.Errorf("link should be gone")
	}
	// removing again is a no-op
	s.RemoveLink("s1", "s2")
}

func TestRemoveNodeRemovesIncidentLinks(t *testing.T) {
	s := NewStore()
	s.AddNode("s1", KindSwitch, "")
	s.AddNode("s2", KindSwitch, "")
	s.AddNode("s3", KindSwitch, "")
	s.AddLink("s1", "s2", 1)
	s.AddLink("s2", "s3", 1)

	s.RemoveNode("s2")

	if s.HasLink("s1", "s2") || s.HasLink("s2", "s3") {
		t.Errorf("incident links must be removed with the node")
	}
	if s.LinkCount() != 0 {
		t.Errorf("expected 0 links, got %d", s.LinkCount())
	}

	// absent node is a no-op
	s.RemoveNode("s2")
}

func TestFindHostByMAC(t *testing.T) {
	s := NewStore()
	s.AddNode("h1", KindHost, "00:00:00:00:00:01")
	s.AddNode("s1", KindSwitch, "")

	n, ok := s.FindHostByMAC("00:00:00:00:00:01")
	if !ok || n.ID != "h1" {
		t.Fatalf("expected h1, got %+v ok=%v", n, ok)
	}
	if _, ok := s.FindHostByMAC("ff:ff:ff:ff:ff:ff"); ok {
		t.Errorf("unknown MAC must not resolve")
	}

	s.RemoveNode("h1")
	if _, ok := s.FindHostByMAC("00:00:00:00:00:01"); ok {
		t.Errorf("MAC index must be cleaned up on node removal")
	}
}

func TestUpdateLinkStats(t *testing.T) {
	s := NewStore()
	s.AddNode("s1", KindSwitch, "")
	s.AddNode("s2", KindSwitch, "")
	s.AddLink("s1", "s2", 1)

	// unknown link: discarded, not buffered
	s.UpdateLinkStats("s1", "s9", LinkStats{RxPackets: 5})
	if _, ok := s.Stats("s1", "s9"); ok {
		t.Errorf("stats for unknown link must be discarded")
	}

	s.UpdateLinkStats("s1", "s2", LinkStats{RxPackets: 10, TxBytes: 100})
	s.UpdateLinkStats("s2", "s1", LinkStats{RxPackets: 20})

	st, ok := s.Stats("s1", "s2")
	if !ok {
		t.Fatalf("expected stats for s1<->s2")
	}
	if st.RxPackets != 20 || st.TxBytes != 0 {
		t.Errorf("newer sample must overwrite wholesale, got %+v", st)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore()
	s.AddNode("s1", KindSwitch, "")
	s.AddNode("s2", KindSwitch, "")
	s.AddLink("s1", "s2", 3)

	snap := s.Snapshot()

	s.RemoveLink("s1", "s2")
	s.AddNode("s3", KindSwitch, "")

	if !snap.HasLink("s1", "s2") {
		t.Errorf("snapshot must not observe later mutation")
	}
	if len(snap.IDs) != 2 {
		t.Errorf("snapshot must not grow with the store, got %d nodes", len(snap.IDs))
	}

	i, j := snap.Index["s1"], snap.Index["s2"]
	if snap.Adj[i][j] != 3 || snap.Adj[j][i] != 3 {
		t.Errorf("snapshot adjacency must carry weights symmetrically")
	}
}

func TestSnapshotSortedIndex(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"s3", "s1", "s2"} {
		s.AddNode(id, KindSwitch, "")
	}

	snap := s.Snapshot()
	want := []string{"s1", "s2", "s3"}
	for i, id := range want {
		if snap.IDs[i] != id {
			t.Fatalf("snapshot IDs not sorted: %v", snap.IDs)
		}
	}
}
