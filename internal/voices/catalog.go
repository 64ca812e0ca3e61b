package voices

import (
	"fmt"
	"strings"
)

// Persona pairs a human-readable descriptor with the prebuilt voice name the
// synthesis service understands.
type Persona struct {
	Descriptor string // e.g. "Warm"
	ID         string // e.g. "Sulafat"
}

// UnknownPersonaError is returned when a descriptor is not in the catalog.
type UnknownPersonaError struct {
	Descriptor string
}

func (e *UnknownPersonaError) Error() string {
	return fmt.Sprintf("unknown voice type %q", e.Descriptor)
}

// Catalog is an ordered, read-only descriptor -> voice ID table.
type Catalog struct {
	personas []Persona
	byKey    map[string]string
}

// New builds a catalog, rejecting blank entries and duplicate descriptors or IDs.
func New(personas ...Persona) (*Catalog, error) {
	c := &Catalog{
		personas: make([]Persona, 0, len(personas)),
		byKey:    make(map[string]string, len(personas)),
	}
	seenIDs := make(map[string]string, len(personas))

	for _, p := range personas {
		if strings.TrimSpace(p.Descriptor) == "" || strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("persona %q -> %q: descriptor and ID are required", p.Descriptor, p.ID)
		}
		if _, dup := c.byKey[p.Descriptor]; dup {
			return nil, fmt.Errorf("duplicate voice type %q", p.Descriptor)
		}
		if other, dup := seenIDs[p.ID]; dup {
			return nil, fmt.Errorf("voice %q mapped by both %q and %q", p.ID, other, p.Descriptor)
		}
		seenIDs[p.ID] = p.Descriptor
		c.byKey[p.Descriptor] = p.ID
		c.personas = append(c.personas, p)
	}
	return c, nil
}

// Resolve returns the voice ID for a descriptor.
func (c *Catalog) Resolve(descriptor string) (string, error) {
	id, ok := c.byKey[descriptor]
	if !ok {
		return "", &UnknownPersonaError{Descriptor: descriptor}
	}
	return id, nil
}

// Descriptors returns the descriptors in catalog order.
func (c *Catalog) Descriptors() []string {
	out := make([]string, len(c.personas))
	for i, p := range c.personas {
		out[i] = p.Descriptor
	}
	return out
}

// Personas returns a copy of the catalog entries in order.
func (c *Catalog) Personas() []Persona {
	out := make([]Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

func (c *Catalog) Len() int { return len(c.personas) }
