/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package roster keeps the canonical list of participants in a room and the
// mapping from transport peer ids to logical participant ids.
//
// Transport ids identify a connection and may change when a participant
// reconnects; logical ids are generated by the application and carried in
// member metadata. Everything above this package deals in logical ids only.
package roster

import (
	"errors"
	"fmt"
)

// Participant is one roster entry.
type Participant struct {
	ID          string
	Nickname    string
	Facilitator bool
	Enabled     bool
}

// Member is a transport-level peer as reported by the room substrate.
type Member struct {
	PeerID   string
	Metadata string
}

type Roster struct {
	self      string
	localPeer string

	order []string
	byID  map[string]*Participant

	// peer id -> logical id
	peers map[string]string
}

// New returns a roster holding only the local participant.
func New(self Metadata) *Roster {
	r := &Roster{
		self:  self.UserID,
		byID:  make(map[string]*Participant),
		peers: make(map[string]string),
	}

	r.insert(self)

	return r
}

// SetLocalPeer records the transport id of this peer so events about it are ignored.
func (r *Roster) SetLocalPeer(peerID string) {
	r.localPeer = peerID
}

// Seed inserts the peers already present when the room was joined. Peers whose
// metadata is not valid JSON are skipped and reported in the returned error;
// peers already on the roster are only mapped.
func (r *Roster) Seed(members []Member) ([]Participant, error) {
	var (
		added []Participant
		errs  []error
	)

	for _, m := range members {
		if m.PeerID == r.localPeer {
			continue
		}

		meta, err := ParseMetadata(m.Metadata)
		if err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", m.PeerID, err))

			continue
		}

		p, ok := r.admit(m.PeerID, meta.withFallback(m.PeerID))
		if ok {
			added = append(added, p)
		}
	}

	return added, errors.Join(errs...)
}

// Join handles a peer joining after the initial snapshot. A peer is never
// dropped: unreadable metadata yields a fallback identity, and the parse error
// is returned alongside it. added is false when the logical id was already
// present, as happens when a join event races the initial snapshot.
func (r *Roster) Join(peerID, metadata string) (p Participant, added bool, err error) {
	if peerID == r.localPeer {
		return *r.byID[r.self], false, nil
	}

	meta, err := ParseMetadata(metadata)
	if err != nil {
		meta = Metadata{}
	}

	p, added = r.admit(peerID, meta.withFallback(peerID))

	return p, added, err
}

// Leave removes the participant behind peerID. The entry stays while another
// transport id still maps to the same logical id. The local participant is
// never removed.
func (r *Roster) Leave(peerID string) (Participant, bool) {
	id, ok := r.peers[peerID]
	if !ok {
		return Participant{}, false
	}

	delete(r.peers, peerID)

	if id == r.self {
		return Participant{}, false
	}

	for _, other := range r.peers {
		if other == id {
			return Participant{}, false
		}
	}

	p, ok := r.byID[id]
	if !ok {
		return Participant{}, false
	}

	delete(r.byID, id)

	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)

			break
		}
	}

	return *p, true
}

// SetEnabled flips the enabled flag of a participant without removing it.
func (r *Roster) SetEnabled(id string, enabled bool) bool {
	p, ok := r.byID[id]
	if !ok {
		return false
	}

	p.Enabled = enabled

	return true
}

func (r *Roster) Get(id string) (Participant, bool) {
	p, ok := r.byID[id]
	if !ok {
		return Participant{}, false
	}

	return *p, true
}

// LogicalID resolves a transport peer id.
func (r *Roster) LogicalID(peerID string) (string, bool) {
	id, ok := r.peers[peerID]

	return id, ok
}

func (r *Roster) Self() Participant {
	return *r.byID[r.self]
}

func (r *Roster) Len() int {
	return len(r.order)
}

// List returns every participant in join order, local participant first.
func (r *Roster) List() []Participant {
	out := make([]Participant, 0, len(r.order))

	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}

	return out
}

// IDs returns the logical ids of every participant.
func (r *Roster) IDs() []string {
	return append([]string(nil), r.order...)
}

// EnabledIDs returns the logical ids of participants that are not disabled.
func (r *Roster) EnabledIDs() []string {
	out := make([]string, 0, len(r.order))

	for _, id := range r.order {
		if r.byID[id].Enabled {
			out = append(out, id)
		}
	}

	return out
}

func (r *Roster) admit(peerID string, meta Metadata) (Participant, bool) {
	r.peers[peerID] = meta.UserID

	if p, ok := r.byID[meta.UserID]; ok {
		return *p, false
	}

	return r.insert(meta), true
}

func (r *Roster) insert(meta Metadata) Participant {
	p := &Participant{
		ID:          meta.UserID,
		Nickname:    meta.Nickname,
		Facilitator: meta.Facilitator,
		Enabled:     true,
	}

	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)

	return *p
}
