package chat

// Directory answers "who is in this room" from the registry's current state.
// It keeps no state of its own, so a listing is never older than the last
// applied registry mutation.
type Directory struct {
	sessions *Registry
}

// NewDirectory creates a directory over the given registry.
func NewDirectory(sessions *Registry) *Directory {
	return &Directory{sessions: sessions}
}

// MembersOf returns the usernames occupying room in registration order,
// leaving out exclude when it is non-empty.
func (d *Directory) MembersOf(room, exclude string) []string {
	return usernames(d.sessions.occupants(room), exclude)
}

// roster returns the room's occupants as a single snapshot, so the pushed
// list and its recipients always agree.
func (d *Directory) roster(room string) []Session {
	return d.sessions.occupants(room)
}

func usernames(occupants []Session, exclude string) []string {
	names := make([]string, 0, len(occupants))
	for _, s := range occupants {
		if exclude != "" && s.Username == exclude {
			continue
		}
		names = append(names, s.Username)
	}
	return names
}

// connections returns the connection ids of occupants, skipping skipConn.
func connections(occupants []Session, skipConn string) []string {
	ids := make([]string, 0, len(occupants))
	for _, s := range occupants {
		if s.ConnID == skipConn {
			continue
		}
		ids = append(ids, s.ConnID)
	}
	return ids
}
