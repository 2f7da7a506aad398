package speech

import "strings"

// Catalog maps friendly voice names to backend voice names or IDs.
type Catalog struct {
	aliases map[string]string
}

// NewCatalog builds a catalog; alias lookups ignore case and surrounding whitespace.
func NewCatalog(aliases map[string]string) *Catalog {
	c := &Catalog{aliases: make(map[string]string, len(aliases))}
	for alias, voice := range aliases {
		c.aliases[normalize(alias)] = voice
	}
	return c
}

// Resolve returns the voice an alias stands for, or name itself when it is not an alias.
func (c *Catalog) Resolve(name string) string {
	if c == nil {
		return name
	}
	if voice, ok := c.aliases[normalize(name)]; ok {
		return voice
	}
	return name
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
