package chat

import (
	"sort"
	"sync"
)

// Store is the client-held view of a conversation. It merges
// server-confirmed messages with locally-originated optimistic ones and
// enforces the ordering rule that substitutes for locking between the send
// coordinator and the resync poller:
//
//   - confirmed messages are kept sorted by creation time (stable for ties);
//   - optimistic entries always trail the confirmed set, in insertion order;
//   - a merge from the server replaces only the confirmed set and can never
//     drop a pending optimistic entry.
//
// The zero value is ready to use. Store is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	confirmed []Message
	pending   []Message
}

// Append adds a message. Confirmed messages are inserted in timestamp order;
// optimistic ones go to the tail of the pending run.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Optimistic {
		s.pending = append(s.pending, msg)
		return
	}
	s.insertConfirmed(msg)
}

// ReplaceOptimistic removes the optimistic entry identified by localID and
// inserts the confirmed messages in its stead. It reports whether the entry
// was found; with an unknown localID nothing changes and the confirmed
// messages are not applied (the caller's send was already reconciled or the
// store was torn down).
func (s *Store) ReplaceOptimistic(localID string, confirmed ...Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dropPending(localID) {
		return false
	}
	for _, msg := range confirmed {
		msg.Optimistic = false
		msg.LocalID = ""
		s.insertConfirmed(msg)
	}
	return true
}

// RemoveOptimistic removes the optimistic entry identified by localID,
// reporting whether it was present. Removing an unknown entry is a no-op.
func (s *Store) RemoveOptimistic(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropPending(localID)
}

// MergeFromServer replaces the confirmed set with the server's list. Pending
// optimistic entries survive the merge unchanged, trailing the confirmed set
// in their existing relative order. Optimistic flags on server entries are
// ignored: anything the server returns is confirmed by definition.
func (s *Store) MergeFromServer(server []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make([]Message, 0, len(server))
	for _, msg := range server {
		msg.Optimistic = false
		msg.LocalID = ""
		replaced = append(replaced, msg)
	}
	sort.SliceStable(replaced, func(i, j int) bool {
		return replaced[i].CreatedAt.Before(replaced[j].CreatedAt)
	})
	s.confirmed = replaced
}

// Snapshot returns a copy of the timeline: confirmed messages in timestamp
// order followed by pending optimistic entries in insertion order.
func (s *Store) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.confirmed)+len(s.pending))
	out = append(out, s.confirmed...)
	out = append(out, s.pending...)
	return out
}

// Len returns the total number of messages, pending included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.confirmed) + len(s.pending)
}

// PendingCount returns the number of optimistic entries awaiting resolution.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// insertConfirmed places msg into the confirmed slice keeping timestamp
// order, after any existing entries with the same timestamp. A message whose
// server ID is already present is dropped: the resync poller can merge a
// send's result before the sender applies it, and inserting the pair twice
// would duplicate it in the timeline. Callers hold mu.
func (s *Store) insertConfirmed(msg Message) {
	msg.Optimistic = false
	if msg.ID > 0 {
		for _, have := range s.confirmed {
			if have.ID == msg.ID {
				return
			}
		}
	}
	idx := sort.Search(len(s.confirmed), func(i int) bool {
		return s.confirmed[i].CreatedAt.After(msg.CreatedAt)
	})
	s.confirmed = append(s.confirmed, Message{})
	copy(s.confirmed[idx+1:], s.confirmed[idx:])
	s.confirmed[idx] = msg
}

// dropPending removes the pending entry with localID. Callers hold mu.
func (s *Store) dropPending(localID string) bool {
	for i, msg := range s.pending {
		if msg.LocalID == localID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}
