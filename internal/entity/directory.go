// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package entity

import (
	"maps"
	"slices"
)

// Directory is the id to entity map shared by the registry and the
// schedulers. Only the registry mutates it; everyone else reads it
// through Lookup.
type Directory struct {
	entities map[ID]*Entity
	lastID   ID
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{entities: make(map[ID]*Entity)}
}

// NextID allocates a fresh id. Ids are never reused within a process.
func (d *Directory) NextID() ID {
	d.lastID++
	return d.lastID
}

// Reserve bumps the allocator so that id and everything below it are
// never handed out by NextID.
func (d *Directory) Reserve(id ID) {
	if id > d.lastID {
		d.lastID = id
	}
}

// Get returns the entity registered under id.
func (d *Directory) Get(id ID) (*Entity, bool) {
	e, ok := d.entities[id]
	return e, ok
}

// Put inserts or replaces an entity.
func (d *Directory) Put(e *Entity) {
	d.entities[e.ID()] = e
	d.Reserve(e.ID())
}

// Delete drops id from the directory.
func (d *Directory) Delete(id ID) {
	delete(d.entities, id)
}

// Len returns the number of entities.
func (d *Directory) Len() int { return len(d.entities) }

// IDs returns a sorted snapshot of the registered ids.
func (d *Directory) IDs() []ID {
	return slices.Sorted(maps.Keys(d.entities))
}
