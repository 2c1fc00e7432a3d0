package slobs

import (
	"fmt"
	"strings"
)

const (
	addressPrefix    = `SceneItem["`
	addressSuffix    = `"]`
	addressSeparator = `","`
)

// SceneItemAddress identifies one item inside one scene. Its string form
// is the resource name SLOBS expects for item-level methods:
//
//	SceneItem["<sceneId>","<itemId>","<sourceId>"]
//
// Ids are inserted verbatim, without escaping.
type SceneItemAddress struct {
	SceneID  string
	ItemID   string
	SourceID string
}

// AddressOf builds the address of item within scene.
func AddressOf(scene Scene, item SceneItem) SceneItemAddress {
	return SceneItemAddress{
		SceneID:  scene.ID,
		ItemID:   item.ID,
		SourceID: item.SourceID,
	}
}

// String formats the address as a SLOBS resource name.
func (a SceneItemAddress) String() string {
	return addressPrefix + a.SceneID + addressSeparator + a.ItemID + addressSeparator + a.SourceID + addressSuffix
}

// ParseSceneItemAddress is the inverse of SceneItemAddress.String.
// Ids containing `","` cannot round-trip.
func ParseSceneItemAddress(s string) (SceneItemAddress, error) {
	if !strings.HasPrefix(s, addressPrefix) || !strings.HasSuffix(s, addressSuffix) ||
		len(s) < len(addressPrefix)+len(addressSuffix) {
		return SceneItemAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	inner := s[len(addressPrefix) : len(s)-len(addressSuffix)]
	parts := strings.Split(inner, addressSeparator)
	if len(parts) != 3 {
		return SceneItemAddress{}, fmt.Errorf("%w: %q has %d parts, want 3", ErrInvalidAddress, s, len(parts))
	}

	return SceneItemAddress{SceneID: parts[0], ItemID: parts[1], SourceID: parts[2]}, nil
}
