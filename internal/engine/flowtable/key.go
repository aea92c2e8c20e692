package flowtable

// FlowKey identifies one direction of a flow by switch and endpoint addresses.
// It is a comparable value used directly as a map key, so two different field
// combinations can never share a key the way a hash of concatenated strings can.
type FlowKey struct {
	SwitchID string
	Src      string
	Dst      string
}

// KeyFunc derives the lookup key of a directed (switch, src, dst) triple.
type KeyFunc func(switchID, src, dst string) FlowKey

// ExactKey is the default KeyFunc. It keeps every field verbatim.
func ExactKey(switchID, src, dst string) FlowKey {
	return FlowKey{SwitchID: switchID, Src: src, Dst: dst}
}
