package secret

import "testing"

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	if _, found, err := s.Get("host", "alice"); err != nil || found {
		t.Errorf("Expected empty store, got found=%v err=%v", found, err)
	}

	if err := s.Set("host", "alice", "s3cret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	pass, found, err := s.Get("host", "alice")
	if err != nil || !found || pass != "s3cret" {
		t.Errorf("Get = %q found=%v err=%v", pass, found, err)
	}

	// Same host, different user is a different slot.
	if _, found, _ := s.Get("host", "bob"); found {
		t.Error("Expected no credentials for another user")
	}

	if err := s.Delete("host", "alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := s.Get("host", "alice"); found {
		t.Error("Expected credentials to be gone after delete")
	}
}
