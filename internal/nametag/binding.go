// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

// Package nametag keeps entity nametags in sync with templates that embed
// live values such as the player count or the time of day.
package nametag

import (
	"maps"
	"strconv"
	"time"

	"github.com/npcforge/npcforge/internal/entity"
)

// Transformer post-processes rendered text. Implementations that also
// implement io.Closer are closed when their binding is unregistered.
type Transformer interface {
	Transform(text string, e *entity.Entity) string
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(text string, e *entity.Entity) string

// Transform implements Transformer.
func (f TransformFunc) Transform(text string, e *entity.Entity) string { return f(text, e) }

// Population reports server occupancy for the built-in variables.
type Population interface {
	OnlineCount() int
	MaxPlayers() int
}

// Binding ties a template, custom variables and an optional transformer
// to one entity.
type Binding struct {
	template    *Template
	vars        map[string]string
	transformer Transformer
}

// NewBinding parses template into a binding with no custom variables.
func NewBinding(template string) (*Binding, error) {
	t, err := ParseTemplate(template)
	if err != nil {
		return nil, err
	}
	return &Binding{template: t, vars: make(map[string]string)}, nil
}

// SetTemplate replaces the template.
func (b *Binding) SetTemplate(template string) error {
	t, err := ParseTemplate(template)
	if err != nil {
		return err
	}
	b.template = t
	return nil
}

// Template returns the template source.
func (b *Binding) Template() string { return b.template.Source() }

// SetVariable sets a custom variable.
func (b *Binding) SetVariable(name, value string) *Binding {
	b.vars[name] = value
	return b
}

// SetVariables merges custom variables.
func (b *Binding) SetVariables(vars map[string]string) *Binding {
	maps.Copy(b.vars, vars)
	return b
}

// Variable returns a custom variable.
func (b *Binding) Variable(name string) (string, bool) {
	v, ok := b.vars[name]
	return v, ok
}

// WithTransformer sets the post-processing step.
func (b *Binding) WithTransformer(t Transformer) *Binding {
	b.transformer = t
	return b
}

// Transformer returns the post-processing step, if any.
func (b *Binding) Transformer() Transformer { return b.transformer }

// Render produces the nametag text for e. Built-in variables take
// precedence over custom ones; unknown placeholders stay verbatim.
func (b *Binding) Render(e *entity.Entity, pop Population, now time.Time) string {
	text := b.template.Render(func(name string) (string, bool) {
		if v, ok := builtin(name, e, pop, now); ok {
			return v, true
		}
		v, ok := b.vars[name]
		return v, ok
	})
	if b.transformer != nil {
		text = b.transformer.Transform(text, e)
	}
	return text
}

func builtin(name string, e *entity.Entity, pop Population, now time.Time) (string, bool) {
	switch name {
	case "player_count":
		return strconv.Itoa(pop.OnlineCount()), true
	case "max_players":
		return strconv.Itoa(pop.MaxPlayers()), true
	case "time":
		return now.Format(time.TimeOnly), true
	case "date":
		return now.Format(time.DateOnly), true
	case "entity_id":
		return strconv.FormatInt(int64(e.ID()), 10), true
	case "world":
		return e.World(), true
	case "entity_name":
		return e.Name(), true
	case "entity_type":
		return e.Kind().DisplayName(), true
	}
	return "", false
}
