package variant

import (
	"strings"

	"github.com/keel-engine/keel/internal/core/hash"
)

// ResourceRef is a typed reference to a named resource. The type hash
// identifies the resource class, the name is the lookup key inside it.
type ResourceRef struct {
	Type hash.StringHash
	Name string
}

// String renders the reference as "type;name". The type renders as its
// registered name when known, as eight hex digits otherwise.
func (r ResourceRef) String() string {
	return r.Type.String() + ";" + r.Name
}

// ResourceRefList is a typed reference to a list of named resources that
// share one resource class.
type ResourceRefList struct {
	Type  hash.StringHash
	Names []string
}

// String renders the list as "type;name1;name2;...".
func (r ResourceRefList) String() string {
	var sb strings.Builder
	sb.WriteString(r.Type.String())
	for _, name := range r.Names {
		sb.WriteByte(';')
		sb.WriteString(name)
	}
	return sb.String()
}

func parseResourceRef(s string) (ResourceRef, error) {
	typePart, name, _ := strings.Cut(s, ";")
	t, err := parseTypeHash(typePart)
	if err != nil {
		return ResourceRef{}, err
	}
	return ResourceRef{Type: t, Name: name}, nil
}

func parseResourceRefList(s string) (ResourceRefList, error) {
	parts := strings.Split(s, ";")
	t, err := parseTypeHash(parts[0])
	if err != nil {
		return ResourceRefList{}, err
	}
	list := ResourceRefList{Type: t}
	if len(parts) > 1 {
		list.Names = parts[1:]
	}
	return list, nil
}

// parseTypeHash inverts StringHash.String: an eight-digit uppercase hex
// field is taken as a literal hash value, anything else is hashed as a
// type name.
func parseTypeHash(s string) (hash.StringHash, error) {
	if len(s) == 8 {
		if v, ok := parseHex32(s); ok {
			return hash.StringHash(v), nil
		}
	}
	return hash.New(s), nil
}

func parseHex32(s string) (uint32, bool) {
	var v uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | uint32(c-'0')
		case c >= 'A' && c <= 'F':
			v = v<<4 | uint32(c-'A'+10)
		default:
			return 0, false
		}
	}
	return v, true
}
