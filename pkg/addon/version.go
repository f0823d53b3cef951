package addon

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TagPrefix precedes the version in every release tag name.
const TagPrefix = "v"

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?$`)

// ErrInvalidVersion is matched by every InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

// InvalidVersionError reports a string that is not a dotted numeric version.
type InvalidVersionError struct {
	Value string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("%q is not a valid version number", e.Value)
}

func (e *InvalidVersionError) Is(target error) bool {
	return target == ErrInvalidVersion
}

// Version is a two or three component numeric version. A missing patch
// component compares as zero but is kept out of String.
type Version struct {
	parts []int
}

// ParseVersion parses "major.minor" or "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	match := versionPattern.FindStringSubmatch(s)
	if match == nil {
		return Version{}, &InvalidVersionError{Value: s}
	}
	parts := make([]int, 0, 3)
	for _, group := range match[1:] {
		if group == "" {
			continue
		}
		n, err := strconv.Atoi(group)
		if err != nil {
			return Version{}, &InvalidVersionError{Value: s}
		}
		parts = append(parts, n)
	}
	return Version{parts: parts}, nil
}

// MustParseVersion is ParseVersion for constants and tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsValidVersion reports whether s parses as a Version.
func IsValidVersion(s string) bool {
	_, err := ParseVersion(s)
	return err == nil
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return len(v.parts) == 0
}

func (v Version) component(i int) int {
	if i < len(v.parts) {
		return v.parts[i]
	}
	return 0
}

// Compare returns -1, 0 or 1 comparing v to o component by component.
func (v Version) Compare(o Version) int {
	for i := 0; i < 3; i++ {
		a, b := v.component(i), o.component(i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

func (v Version) String() string {
	strs := make([]string, len(v.parts))
	for i, p := range v.parts {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ".")
}

// Tag is a version tag such as "v1.2.3".
type Tag struct {
	Name    string
	Version Version
}

func (t Tag) String() string {
	return t.Name
}

// TagFor returns the tag name for v.
func TagFor(v Version) string {
	return TagPrefix + v.String()
}

// ParseTag parses a tag name of the form v<version>.
func ParseTag(name string) (Tag, error) {
	rest, ok := strings.CutPrefix(name, TagPrefix)
	if !ok {
		return Tag{}, &InvalidVersionError{Value: name}
	}
	v, err := ParseVersion(rest)
	if err != nil {
		return Tag{}, &InvalidVersionError{Value: name}
	}
	return Tag{Name: name, Version: v}, nil
}

// IsVersionTag reports whether name is a valid version tag.
func IsVersionTag(name string) bool {
	_, err := ParseTag(name)
	return err == nil
}

// FilterVersionTags keeps the names that are version tags, in input order.
func FilterVersionTags(names []string) []Tag {
	var tags []Tag
	for _, name := range names {
		tag, err := ParseTag(name)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// SortTagsDescending orders tags newest first. Equal versions keep name order.
func SortTagsDescending(tags []Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		if c := tags[i].Version.Compare(tags[j].Version); c != 0 {
			return c > 0
		}
		return tags[i].Name < tags[j].Name
	})
}

// LatestTag returns the tag with the highest version.
func LatestTag(tags []Tag) (Tag, bool) {
	if len(tags) == 0 {
		return Tag{}, false
	}
	sorted := append([]Tag(nil), tags...)
	SortTagsDescending(sorted)
	return sorted[0], true
}
