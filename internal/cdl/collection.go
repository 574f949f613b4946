// Package cdl builds ASC Color Decision List collections (CCC documents).
//
// A Collection accumulates ColorCorrection entries one record at a time,
// derives each entry's id from a shot name through a naming convention
// pattern, and renames colliding ids with a _v<N> suffix so that no two
// entries share an id. SortByID orders the entries before encoding.
package cdl

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hpungsan/ale2ccc/internal/errors"
)

// DefaultNamingPattern captures ids such as 123AB_456 at the start of a shot name.
const DefaultNamingPattern = `^(\d+\w\w_\d+)`

// versionSuffix matches a trailing _v<N> on an id.
var versionSuffix = regexp.MustCompile(`_v(\d+)$`)

// Triplet holds three channel values in their original textual form.
type Triplet [3]string

// String renders the triplet as three space-separated tokens.
func (t Triplet) String() string {
	return strings.Join(t[:], " ")
}

// ParseTriplet splits a space-separated string into a Triplet.
func ParseTriplet(s string) (Triplet, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return Triplet{}, fmt.Errorf("expected 3 values, got %d in %q", len(parts), s)
	}
	return Triplet{parts[0], parts[1], parts[2]}, nil
}

// ColorCorrection is one graded shot. Entries are never mutated after insertion.
type ColorCorrection struct {
	ID         string
	Slope      Triplet
	Offset     Triplet
	Power      Triplet
	Saturation string
}

// Option configures a Collection.
type Option func(*Collection)

// WithNamingPattern replaces DefaultNamingPattern.
// The first capture group becomes the id; without groups, the whole match does.
func WithNamingPattern(re *regexp.Regexp) Option {
	return func(c *Collection) {
		if re != nil {
			c.naming = re
		}
	}
}

// Collection is an ordered set of ColorCorrection entries keyed by id.
// It is not safe for concurrent use.
type Collection struct {
	naming  *regexp.Regexp
	entries []ColorCorrection
	index   map[string]int
}

// NewCollection returns an empty Collection.
func NewCollection(opts ...Option) *Collection {
	c := &Collection{
		naming: regexp.MustCompile(DefaultNamingPattern),
		index:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileNamingPattern compiles a user-supplied naming convention pattern.
// An empty pattern selects DefaultNamingPattern.
func CompileNamingPattern(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultNamingPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid naming pattern %q: %v", pattern, err))
	}
	return re, nil
}

// NamingPattern returns the pattern source used to derive ids.
func (c *Collection) NamingPattern() string {
	return c.naming.String()
}

// DeriveID applies the naming convention to rawName.
func (c *Collection) DeriveID(rawName string) (string, bool) {
	m := c.naming.FindStringSubmatch(rawName)
	if m == nil {
		return "", false
	}
	id := m[0]
	if len(m) > 1 {
		id = m[1]
	}
	if id == "" {
		return "", false
	}
	return id, true
}

// Add derives an id for rawName, resolves collisions and appends a new entry.
// It returns the id the entry was stored under. A name that does not match
// the naming convention yields a NAMING_CONVENTION error and nothing is added.
func (c *Collection) Add(rawName string, slope, offset, power Triplet, saturation string) (string, error) {
	id, ok := c.DeriveID(rawName)
	if !ok {
		return "", errors.NewNamingConvention(rawName, c.naming.String())
	}

	id = c.resolve(id)
	c.index[id] = len(c.entries)
	c.entries = append(c.entries, ColorCorrection{
		ID:         id,
		Slope:      slope,
		Offset:     offset,
		Power:      power,
		Saturation: saturation,
	})
	return id, nil
}

// resolve returns the first id in candidate's version chain that is not taken.
// Each step re-derives from the id it collided with: base -> base_v1 -> base_v2.
func (c *Collection) resolve(candidate string) string {
	for {
		if _, taken := c.index[candidate]; !taken {
			return candidate
		}
		candidate = NextVersion(candidate)
	}
}

// NextVersion returns id with its _v<N> suffix incremented, or with _v1 appended.
func NextVersion(id string) string {
	loc := versionSuffix.FindStringSubmatchIndex(id)
	if loc == nil {
		return id + "_v1"
	}
	n, err := strconv.Atoi(id[loc[2]:loc[3]])
	if err != nil {
		// Too many digits for an int; treat as unversioned.
		return id + "_v1"
	}
	return id[:loc[2]] + strconv.Itoa(n+1)
}

// SortByID orders entries by id, ascending byte-wise. Calling it again is a no-op.
func (c *Collection) SortByID() {
	slices.SortStableFunc(c.entries, func(a, b ColorCorrection) int {
		return strings.Compare(a.ID, b.ID)
	})
	for i, e := range c.entries {
		c.index[e.ID] = i
	}
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries in their current order.
func (c *Collection) Entries() []ColorCorrection {
	return slices.Clone(c.entries)
}

// IDs returns the entry ids in their current order.
func (c *Collection) IDs() []string {
	ids := make([]string, len(c.entries))
	for i, e := range c.entries {
		ids[i] = e.ID
	}
	return ids
}

// Get returns the entry stored under id.
func (c *Collection) Get(id string) (ColorCorrection, bool) {
	i, ok := c.index[id]
	if !ok {
		return ColorCorrection{}, false
	}
	return c.entries[i], true
}

// insert appends a decoded entry verbatim. Duplicate ids are rejected.
func (c *Collection) insert(cc ColorCorrection) error {
	if _, taken := c.index[cc.ID]; taken {
		return fmt.Errorf("duplicate ColorCorrection id %q", cc.ID)
	}
	c.index[cc.ID] = len(c.entries)
	c.entries = append(c.entries, cc)
	return nil
}
