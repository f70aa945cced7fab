package branchscope

import (
	"sort"
	"strings"

	"BranchLMS/internal/domain"
	"BranchLMS/internal/textutil"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// UnknownLocCode is returned for store names missing from the table so that
// aggregations can report an unclassified bucket.
const UnknownLocCode = "Unknown"

// Location lists every historical spelling of one physical store.
type Location struct {
	LocCode string   `mapstructure:"locCode"`
	Names   []string `mapstructure:"names"`
}

// Table resolves store display names to location codes. It is built once at
// startup and is read-only afterwards, so it is safe for concurrent use.
type Table struct {
	version string
	byName  map[string]string
	codes   map[string]struct{}
}

// NewTable indexes locations by their normalised names. A name claimed by two
// different codes is a configuration error.
func NewTable(version string, locations []Location) (*Table, error) {
	t := &Table{version: version, byName: make(map[string]string), codes: make(map[string]struct{})}
	for _, loc := range locations {
		code := strings.TrimSpace(loc.LocCode)
		if code == "" {
			return nil, errors.New("store location entry without locCode")
		}
		t.codes[code] = struct{}{}
		// the code itself is a valid spelling
		for _, name := range append([]string{code}, loc.Names...) {
			key := textutil.MatchKey(name)
			if key == "" {
				continue
			}
			if prev, ok := t.byName[key]; ok && prev != code {
				return nil, errors.Errorf("store name %q maps to both %s and %s", name, prev, code)
			}
			t.byName[key] = code
		}
	}
	return t, nil
}

// LoadTable reads the versioned store-location file at path (YAML, JSON or TOML).
func LoadTable(path string) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read store location table %s", path)
	}
	var locations []Location
	if err := v.UnmarshalKey("locations", &locations); err != nil {
		return nil, errors.Wrap(err, "decode store locations")
	}
	return NewTable(v.GetString("version"), locations)
}

func (t *Table) Version() string { return t.version }

func (t *Table) Len() int { return len(t.byName) }

// MapStoreNameToLocCode returns the canonical code for storeName, or UnknownLocCode.
func (t *Table) MapStoreNameToLocCode(storeName string) string {
	if t == nil {
		return UnknownLocCode
	}
	if code, ok := t.byName[textutil.MatchKey(storeName)]; ok {
		return code
	}
	return UnknownLocCode
}

// ResolveLocCode prefers an explicit store code and falls back to the name table.
func (t *Table) ResolveLocCode(storeCode, storeName string) string {
	if c := strings.TrimSpace(storeCode); c != "" {
		return c
	}
	return t.MapStoreNameToLocCode(storeName)
}

// MissingLocCodes lists, sorted, the codes of branches that no table entry maps to.
func (t *Table) MissingLocCodes(branches []domain.Branch) []string {
	var missing []string
	for _, b := range branches {
		code := strings.TrimSpace(b.LocCode)
		if code == "" {
			continue
		}
		if _, ok := t.codes[code]; !ok {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return missing
}
