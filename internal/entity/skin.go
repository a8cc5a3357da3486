// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package entity

// MinSkinSize is the smallest accepted skin payload in bytes (64x32 RGBA).
const MinSkinSize = 8192

// DefaultSkinName is the identifier used for generated skins.
const DefaultSkinName = "Standard_Custom"

// Skin is an opaque appearance payload. Image decoding is the host's job.
type Skin struct {
	Name string
	Data []byte
}

// BlankSkin returns a transparent skin of the minimum size.
func BlankSkin() Skin {
	return Skin{Name: DefaultSkinName, Data: make([]byte, MinSkinSize)}
}

// Usable reports whether the payload meets the minimum size.
func (s Skin) Usable() bool {
	return len(s.Data) >= MinSkinSize
}

// OrBlank returns s, or a blank skin when the payload is too short.
// The identifier is kept when present.
func (s Skin) OrBlank() Skin {
	if s.Usable() {
		return s
	}
	blank := BlankSkin()
	if s.Name != "" {
		blank.Name = s.Name
	}
	return blank
}
