package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-krb5cc/core"
)

const (
	TypeResolve    = "krb5cc.command.resolve"
	TypeNewUnique  = "krb5cc.command.new_unique"
	TypeInit       = "krb5cc.command.init"
	TypeStore      = "krb5cc.command.store"
	TypeRetrieve   = "krb5cc.command.retrieve"
	TypeRemoveCred = "krb5cc.command.remove_cred"
	TypeSwitch     = "krb5cc.command.switch"
	TypeMove       = "krb5cc.command.move"
	TypeCopy       = "krb5cc.command.copy"
	TypeDestroy    = "krb5cc.command.destroy"
	TypeSetConfig  = "krb5cc.command.set_config"
)

// ResolveMessage names a cache by full name ("PREFIX:residual"), bare
// path, or empty string for the current default.
type ResolveMessage struct {
	Name string
}

func (ResolveMessage) Type() string { return TypeResolve }

func (m ResolveMessage) Validate() error { return nil }

// NewUniqueMessage asks a backend (TypeHint, or the compile-time
// default when empty) to generate a fresh, backend-unique cache.
type NewUniqueMessage struct {
	TypeHint  string
	HumanHint string
}

func (NewUniqueMessage) Type() string { return TypeNewUnique }

func (m NewUniqueMessage) Validate() error { return nil }

// InitMessage creates an empty cache owned by Owner at the cache named
// by Name (resolved the same way ResolveMessage is).
type InitMessage struct {
	Name  string
	Owner core.Principal
}

func (InitMessage) Type() string { return TypeInit }

func (m InitMessage) Validate() error {
	if m.Owner.IsZero() {
		return fmt.Errorf("command: owner principal is required")
	}
	return nil
}

// StoreMessage persists a credential into the cache named by Name.
type StoreMessage struct {
	Name       string
	Credential core.Credential
}

func (StoreMessage) Type() string { return TypeStore }

func (m StoreMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("command: cache name is required")
	}
	if m.Credential.Server.IsZero() {
		return fmt.Errorf("command: credential server principal is required")
	}
	return nil
}

// RetrieveMessage returns the first credential in the cache named by
// Name matching Mask/Template.
type RetrieveMessage struct {
	Name     string
	Mask     core.MatchField
	Template core.Credential
}

func (RetrieveMessage) Type() string { return TypeRetrieve }

func (m RetrieveMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("command: cache name is required")
	}
	return nil
}

// RemoveCredMessage deletes the first credential matching Mask/Template
// from the cache named by Name.
type RemoveCredMessage struct {
	Name     string
	Mask     core.MatchField
	Template core.Credential
}

func (RemoveCredMessage) Type() string { return TypeRemoveCred }

func (m RemoveCredMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("command: cache name is required")
	}
	return nil
}

// SwitchMessage makes the cache named by Name its backend's current
// cache through set_default; the Context's default name is unchanged.
// On backends without set_default it is a no-op.
type SwitchMessage struct {
	Name string
}

func (SwitchMessage) Type() string { return TypeSwitch }

func (m SwitchMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("command: cache name is required")
	}
	return nil
}

// MoveMessage atomically replaces To with From's contents. Both must
// resolve to the same backend prefix.
type MoveMessage struct {
	From string
	To   string
}

func (MoveMessage) Type() string { return TypeMove }

func (m MoveMessage) Validate() error {
	if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("command: from and to cache names are required")
	}
	return nil
}

// CopyMessage copies every credential from From matching Mask/Template
// (or all of them, when HasTemplate is false) into To, across backend
// types if needed.
type CopyMessage struct {
	From        string
	To          string
	Mask        core.MatchField
	Template    core.Credential
	HasTemplate bool
}

func (CopyMessage) Type() string { return TypeCopy }

func (m CopyMessage) Validate() error {
	if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("command: from and to cache names are required")
	}
	return nil
}

// DestroyMessage erases the backing storage of the cache named by Name.
type DestroyMessage struct {
	Name string
}

func (DestroyMessage) Type() string { return TypeDestroy }

func (m DestroyMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("command: cache name is required")
	}
	return nil
}

// SetConfigMessage writes (DataOpt non-nil) or deletes (DataOpt nil)
// a configuration entry on the cache named by Name.
type SetConfigMessage struct {
	Name         string
	PrincipalOpt *core.Principal
	ConfigName   string
	DataOpt      []byte
}

func (SetConfigMessage) Type() string { return TypeSetConfig }

func (m SetConfigMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("command: cache name is required")
	}
	if strings.TrimSpace(m.ConfigName) == "" {
		return fmt.Errorf("command: config name is required")
	}
	return nil
}
