package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserContext is the normalized per-request identity handed to downstream
// handlers.  It is assembled fresh on every request and never cached.
type UserContext struct {
	Email       string         `json:"email" validate:"required"`
	UserID      string         `json:"user_id" validate:"required,uuid"`
	TenantID    string         `json:"tenant_id" validate:"required"` // "None" for super-admins
	Name        string         `json:"name"`
	Status      string         `json:"status" validate:"required"`
	UserDetails map[string]any `json:"user_details" validate:"required"`
	Privileges  []string       `json:"privileges"`
}

// HasPrivilege reports whether the exact "resource:action" string is held.
func (u UserContext) HasPrivilege(p string) bool {
	for _, have := range u.Privileges {
		if have == p {
			return true
		}
	}
	return false
}

// UserResponse is the envelope returned by the resolver.  Message is set
// only when the flattened privilege list is empty.
type UserResponse struct {
	Users   []UserContext `json:"users" validate:"required,min=1,dive"`
	Message *string       `json:"message"`
}

// privilegeBundle is the decoded shape of a cached privilege entry:
// a "user" object plus a resource-to-privilege mapping.
type privilegeBundle struct {
	User       map[string]any
	Privileges []string // already flattened to "resource:action"
}

// parseBundle normalizes a cached value.  The cache stores JSON; a value
// that is itself a JSON-encoded string is unwrapped once before decoding.
// Anything that does not decode to an object containing a "user" key is a
// corrupt entry.
func parseBundle(raw string) (privilegeBundle, error) {
	data := []byte(raw)
	if isJSONString(data) {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return privilegeBundle{}, fmt.Errorf("%w: %v", ErrCorruptCacheEntry, err)
		}
		data = []byte(inner)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return privilegeBundle{}, fmt.Errorf("%w: %v", ErrCorruptCacheEntry, err)
	}
	userRaw, ok := top["user"]
	if !ok {
		return privilegeBundle{}, fmt.Errorf("%w: missing user entry", ErrCorruptCacheEntry)
	}
	var user map[string]any
	if err := json.Unmarshal(userRaw, &user); err != nil {
		return privilegeBundle{}, fmt.Errorf("%w: user entry: %v", ErrCorruptCacheEntry, err)
	}

	privs, err := flattenPrivileges(top["privileges"])
	if err != nil {
		return privilegeBundle{}, err
	}
	return privilegeBundle{User: user, Privileges: privs}, nil
}

// flattenPrivileges turns {"resource": "priv" | ["priv", ...]} into a flat
// ["resource:priv", ...] list.  A streaming decoder walks the object so the
// stored key order is preserved; list-valued entries keep their list order.
func flattenPrivileges(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []string{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: privileges entry: %v", ErrCorruptCacheEntry, err)
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: privileges entry is not an object", ErrCorruptCacheEntry)
	}

	out := []string{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: privileges entry: %v", ErrCorruptCacheEntry, err)
		}
		resource, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: privileges entry: non-string key", ErrCorruptCacheEntry)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: privileges entry: %v", ErrCorruptCacheEntry, err)
		}
		switch v := value.(type) {
		case []any:
			for _, item := range v {
				out = append(out, fmt.Sprintf("%s:%v", resource, item))
			}
		default:
			out = append(out, fmt.Sprintf("%s:%v", resource, v))
		}
	}
	return out, nil
}

// isJSONString reports whether the value's first significant byte opens a
// JSON string.
func isJSONString(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '"'
}
