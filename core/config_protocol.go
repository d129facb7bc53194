package core

import (
	"context"
	"time"
)

// configThirtyDays is the informational lifetime given to every
// configuration credential; the core never filters config entries by
// expiration, so this value is never enforced, only recorded.
const configThirtyDays = 30 * 24 * time.Hour

func configServerPrincipal(name string, principalOpt *Principal) Principal {
	components := []string{ConfigNameComponent, name}
	if principalOpt != nil {
		components = append(components, principalOpt.Unparse())
	}
	return NewPrincipal(ConfigRealm, components...)
}

// SetConfig writes (or, with dataOpt nil, deletes) a named
// configuration value on the cache h is bound to (§4.6). A pre-existing
// entry is always removed first; a not-found result from that removal
// is swallowed, matching the propagation policy's one documented
// exception for configuration writes.
func (c *Context) SetConfig(ctx context.Context, h *Handle, principalOpt *Principal, name string, dataOpt []byte) error {
	owner, err := h.GetPrincipal(ctx)
	if err != nil {
		return err
	}
	server := configServerPrincipal(name, principalOpt)
	template := Credential{Client: owner, Server: server}

	if err := h.RemoveCred(ctx, MatchClient|MatchServer, template); err != nil && !IsNotFound(err) {
		return err
	}

	if dataOpt == nil {
		return nil
	}

	now := c.now()
	cred := Credential{
		Client: owner,
		Server: server,
		Ticket: append([]byte(nil), dataOpt...),
		Times: Times{
			AuthTime: now.Unix(),
			EndTime:  now.Add(configThirtyDays).Unix(),
		},
	}
	return h.Store(ctx, cred)
}

// GetConfig reads a named configuration value (§4.6).
func (c *Context) GetConfig(ctx context.Context, h *Handle, principalOpt *Principal, name string) ([]byte, error) {
	owner, err := h.GetPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	server := configServerPrincipal(name, principalOpt)
	template := Credential{Client: owner, Server: server}

	cred, err := h.Retrieve(ctx, MatchClient|MatchServer, template)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), cred.Ticket...), nil
}

// FriendlyName returns the cache's configured "FriendlyName" entry, or
// the unparsed owner principal when no such entry exists (end-to-end
// scenario 4).
func (c *Context) FriendlyName(ctx context.Context, h *Handle) (string, error) {
	data, err := c.GetConfig(ctx, h, nil, "FriendlyName")
	if err != nil {
		if IsNotFound(err) {
			owner, ownerErr := h.GetPrincipal(ctx)
			if ownerErr != nil {
				return "", ownerErr
			}
			return owner.Unparse(), nil
		}
		return "", err
	}
	return string(data), nil
}
