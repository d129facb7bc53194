package core

import "strings"

// ConfigRealm is the reserved realm that marks a configuration
// credential. Backends must not special-case it; the core distinguishes
// configuration credentials purely by this predicate.
const ConfigRealm = "X-CACHECONF:"

// ConfigNameComponent is the required first name component of every
// configuration credential's server principal.
const ConfigNameComponent = "krb5_ccache_conf_data"

// Principal is an opaque, comparable Kerberos identity: a realm plus an
// ordered sequence of name components.
type Principal struct {
	Realm string
	Name  []string
}

// NewPrincipal builds a Principal from a realm and its name components.
func NewPrincipal(realm string, name ...string) Principal {
	components := make([]string, len(name))
	copy(components, name)
	return Principal{Realm: realm, Name: components}
}

// Equal reports whether two principals have the same realm and name
// components, in order.
func (p Principal) Equal(other Principal) bool {
	if p.Realm != other.Realm {
		return false
	}
	if len(p.Name) != len(other.Name) {
		return false
	}
	for i := range p.Name {
		if p.Name[i] != other.Name[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether p carries no realm and no name components.
func (p Principal) IsZero() bool {
	return p.Realm == "" && len(p.Name) == 0
}

// Unparse renders the principal in "comp1/comp2.../comp@realm" form,
// the textual representation used by get_full_name-adjacent callers
// (e.g. the friendly-name fallback in the configuration protocol).
func (p Principal) Unparse() string {
	return strings.Join(p.Name, "/") + "@" + p.Realm
}

// IsConfigPrincipal reports whether p is the server principal of a
// configuration credential: realm X-CACHECONF: and first name
// component krb5_ccache_conf_data.
func IsConfigPrincipal(p Principal) bool {
	return p.Realm == ConfigRealm && len(p.Name) > 0 && p.Name[0] == ConfigNameComponent
}

// Times holds the two timestamps the core relies on, in POSIX seconds.
// Other credential timestamps exist but are opaque to the core.
type Times struct {
	AuthTime int64
	EndTime  int64
}

// Credential associates a client and server principal with an opaque
// ticket blob and a times substructure.
type Credential struct {
	Client Principal
	Server Principal
	Ticket []byte
	Times  Times
}

// Clone returns a deep copy of the credential, safe to mutate
// independently of the original (backends must not alias ticket bytes
// across handles).
func (c Credential) Clone() Credential {
	clone := c
	clone.Client.Name = append([]string(nil), c.Client.Name...)
	clone.Server.Name = append([]string(nil), c.Server.Name...)
	if c.Ticket != nil {
		clone.Ticket = append([]byte(nil), c.Ticket...)
	}
	return clone
}

// MatchField selects which parts of a template a Match call compares.
// Unset bits are wildcards.
type MatchField uint8

const (
	MatchClient MatchField = 1 << iota
	MatchServer
	MatchServerRealmOnly
	MatchTimes
)

// Has reports whether mask includes field.
func (mask MatchField) Has(field MatchField) bool {
	return mask&field != 0
}

// MatchCredential compares candidate against template under mask,
// standing in for the Kerberos context's external compare_creds
// collaborator (spec treats it as supplied by the enclosing context;
// the core only needs its boolean contract).
func MatchCredential(mask MatchField, template, candidate Credential) bool {
	if mask.Has(MatchClient) && !template.Client.Equal(candidate.Client) {
		return false
	}
	if mask.Has(MatchServer) {
		if mask.Has(MatchServerRealmOnly) {
			if template.Server.Realm != candidate.Server.Realm {
				return false
			}
		} else if !template.Server.Equal(candidate.Server) {
			return false
		}
	}
	if mask.Has(MatchTimes) {
		if template.Times.AuthTime != candidate.Times.AuthTime {
			return false
		}
		if template.Times.EndTime != candidate.Times.EndTime {
			return false
		}
	}
	return true
}
