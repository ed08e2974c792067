package h2

// Setting is one (identifier, value) pair from a SETTINGS frame.
type Setting struct {
	ID    SettingID
	Value uint32
}

// Settings is an insertion-ordered registry of SETTINGS values. The codec
// keeps two: the ingress copy mirrors what the peer advertised, the egress
// copy holds what we advertise. Unknown identifiers are stored as-is.
type Settings struct {
	list  []Setting
	index map[SettingID]int
}

func newSettings() *Settings {
	return &Settings{index: make(map[SettingID]int)}
}

// Set records a value, replacing any earlier value for the same id while
// keeping its original position.
func (s *Settings) Set(id SettingID, value uint32) {
	if i, ok := s.index[id]; ok {
		s.list[i].Value = value
		return
	}
	s.index[id] = len(s.list)
	s.list = append(s.list, Setting{ID: id, Value: value})
}

// Get returns the recorded value for id, or def when the id was never set.
func (s *Settings) Get(id SettingID, def uint32) uint32 {
	if i, ok := s.index[id]; ok {
		return s.list[i].Value
	}
	return def
}

// IsSet reports whether id has been recorded.
func (s *Settings) IsSet(id SettingID) bool {
	_, ok := s.index[id]
	return ok
}

// All returns every set entry in insertion order. The returned slice is
// owned by the registry.
func (s *Settings) All() []Setting {
	return s.list
}

// Len returns the number of set entries.
func (s *Settings) Len() int {
	return len(s.list)
}
