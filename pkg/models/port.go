package models

// Port is a declared entry or exit point of a fragment.
type Port struct {
	ID          string `json:"id"      yaml:"-"` // "{fragment_id}:{port_name}"
	NodeID      string `json:"node_id" yaml:"node"`
	Name        string `json:"name"    yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// MakePortID creates a port ID from a fragment ID and port name.
func MakePortID(fragmentID, portName string) string {
	return fragmentID + ":" + portName
}
