package schema

import (
	"strings"

	"github.com/wippyai/hyphen/errors"
)

// TagName is the struct tag key read from reflect-derived classes.
const TagName = "hyphen"

// Options are the per-member configuration switches.
type Options struct {
	// Codec names a custom codec registered with the Registry.
	Codec string
	// SubclassSet names a subclass set registered with the Registry.
	SubclassSet string
	// Subclasses is an inline, ordered candidate set. The order fixes
	// the wire discriminators.
	Subclasses []TypeRef
	// Nullable writes a presence byte before the value.
	Nullable bool
	// Stale excludes the member from the wire format.
	Stale bool
}

// IsZero reports whether no option is set.
func (o Options) IsZero() bool {
	return !o.Nullable && !o.Stale && o.Codec == "" && o.SubclassSet == "" && len(o.Subclasses) == 0
}

// Polymorphic reports whether a candidate set is declared.
func (o Options) Polymorphic() bool {
	return o.SubclassSet != "" || len(o.Subclasses) > 0
}

// Validate rejects contradictory combinations.
func (o Options) Validate(path []string) error {
	if o.Stale && (o.Nullable || o.Codec != "" || o.Polymorphic()) {
		return errors.InvalidConfig(path, "stale cannot be combined with other options (%s)", o.String())
	}
	if o.Codec != "" && o.Polymorphic() {
		return errors.InvalidConfig(path, "codec %q cannot be combined with a subclass set", o.Codec)
	}
	if o.SubclassSet != "" && len(o.Subclasses) > 0 {
		return errors.InvalidConfig(path, "both subclass set %q and inline subclasses declared", o.SubclassSet)
	}
	for i, s := range o.Subclasses {
		if s == nil {
			return errors.InvalidConfig(path, "subclass candidate %d is nil", i)
		}
	}
	return nil
}

// Merge overlays other on o. Booleans are or-ed; names and sets from
// other win when set.
func (o Options) Merge(other Options) Options {
	out := o
	out.Nullable = o.Nullable || other.Nullable
	out.Stale = o.Stale || other.Stale
	if other.Codec != "" {
		out.Codec = other.Codec
	}
	if other.SubclassSet != "" {
		out.SubclassSet = other.SubclassSet
	}
	if len(other.Subclasses) > 0 {
		out.Subclasses = other.Subclasses
	}
	return out
}

// String renders the options in tag syntax.
func (o Options) String() string {
	var parts []string
	if o.Nullable {
		parts = append(parts, "nullable")
	}
	if o.Stale {
		parts = append(parts, "stale")
	}
	if o.SubclassSet != "" {
		parts = append(parts, "subclasses="+o.SubclassSet)
	}
	if len(o.Subclasses) > 0 {
		names := make([]string, len(o.Subclasses))
		for i, s := range o.Subclasses {
			names[i] = RefString(s)
		}
		parts = append(parts, "subclasses=["+strings.Join(names, "|")+"]")
	}
	if o.Codec != "" {
		parts = append(parts, "codec="+o.Codec)
	}
	return strings.Join(parts, ",")
}

// Tag holds the parsed form of a `hyphen:"..."` struct tag.
type Tag struct {
	// Name overrides the member name. Empty keeps the Go field name.
	Name    string
	Options Options
	// Skip omits the Go field from a derived class ("-").
	Skip bool
}

// ParseTag parses a struct tag value of the form
//
//	name,nullable,stale,subclasses=<set>,codec=<name>
//
// The leading name is optional. Unknown keys and repeated keys are
// configuration errors.
func ParseTag(tag string, path []string) (Tag, error) {
	var t Tag
	if tag == "" {
		return t, nil
	}
	if tag == "-" {
		t.Skip = true
		return t, nil
	}

	seen := make(map[string]bool)
	for i, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		key, value, hasValue := strings.Cut(part, "=")
		if i == 0 && !hasValue && !isOptionKey(key) {
			t.Name = key
			continue
		}
		if key == "" {
			return Tag{}, errors.InvalidConfig(path, "empty option in tag %q", tag)
		}
		if seen[key] {
			return Tag{}, errors.InvalidConfig(path, "option %q repeated in tag %q", key, tag)
		}
		seen[key] = true

		switch key {
		case "nullable":
			if hasValue {
				return Tag{}, errors.InvalidConfig(path, "option nullable takes no value")
			}
			t.Options.Nullable = true
		case "stale":
			if hasValue {
				return Tag{}, errors.InvalidConfig(path, "option stale takes no value")
			}
			t.Options.Stale = true
		case "subclasses":
			if value == "" {
				return Tag{}, errors.InvalidConfig(path, "subclasses requires a set name")
			}
			t.Options.SubclassSet = value
		case "codec":
			if value == "" {
				return Tag{}, errors.InvalidConfig(path, "codec requires a name")
			}
			t.Options.Codec = value
		default:
			return Tag{}, errors.InvalidConfig(path, "unknown option %q in tag %q", key, tag)
		}
	}

	if err := t.Options.Validate(path); err != nil {
		return Tag{}, err
	}
	return t, nil
}

func isOptionKey(key string) bool {
	switch key {
	case "nullable", "stale", "subclasses", "codec":
		return true
	}
	return false
}
