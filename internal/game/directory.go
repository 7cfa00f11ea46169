package game

import "stonkroyale.gg/internal/protocol"

// UnknownName is returned for participants with no registered name.
const UnknownName = "Unknown"

// Directory maps participant identity to display name, populated from
// name_set broadcasts. Independent of game phase.
type Directory struct {
	names map[string]string
}

func NewDirectory() *Directory {
	return &Directory{names: make(map[string]string)}
}

// SetName overwrites the display name for address.
func (d *Directory) SetName(address, name string) {
	d.names[protocol.NormalizeAddress(address)] = name
}

// Get returns the display name for address, or UnknownName.
func (d *Directory) Get(address string) string {
	if name, ok := d.names[protocol.NormalizeAddress(address)]; ok && name != "" {
		return name
	}
	return UnknownName
}

// Lookup reports whether a name has been registered for address.
func (d *Directory) Lookup(address string) (string, bool) {
	name, ok := d.names[protocol.NormalizeAddress(address)]
	return name, ok
}
