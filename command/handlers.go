package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-krb5cc/core"
)

// Dispatcher is the subset of *core.Context the commands in this
// package depend on, narrowed to an interface so handlers can be
// exercised against a fake in tests without a live backend registry.
type Dispatcher interface {
	Resolve(ctx context.Context, name string) (*core.Handle, error)
	NewUnique(ctx context.Context, typeHint, humanHint string) (*core.Handle, error)
	Switch(ctx context.Context, h *core.Handle) error
	Move(ctx context.Context, from, to *core.Handle) error
	CopyCache(ctx context.Context, from, to *core.Handle) error
	CopyCacheMatch(ctx context.Context, from, to *core.Handle, mask core.MatchField, templateOpt *core.Credential, counterOpt *int) error
	SetConfig(ctx context.Context, h *core.Handle, principalOpt *core.Principal, name string, dataOpt []byte) error
}

type ResolveCommand struct {
	dispatcher Dispatcher
}

func NewResolveCommand(dispatcher Dispatcher) *ResolveCommand {
	return &ResolveCommand{dispatcher: dispatcher}
}

func (c *ResolveCommand) Execute(ctx context.Context, msg ResolveMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.Resolve(ctx, msg.Name)
	if err != nil {
		return err
	}
	storeResult(ctx, h)
	return nil
}

type NewUniqueCommand struct {
	dispatcher Dispatcher
}

func NewNewUniqueCommand(dispatcher Dispatcher) *NewUniqueCommand {
	return &NewUniqueCommand{dispatcher: dispatcher}
}

func (c *NewUniqueCommand) Execute(ctx context.Context, msg NewUniqueMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.NewUnique(ctx, msg.TypeHint, msg.HumanHint)
	if err != nil {
		return err
	}
	storeResult(ctx, h)
	return nil
}

type InitCommand struct {
	dispatcher Dispatcher
}

func NewInitCommand(dispatcher Dispatcher) *InitCommand {
	return &InitCommand{dispatcher: dispatcher}
}

func (c *InitCommand) Execute(ctx context.Context, msg InitMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.Resolve(ctx, msg.Name)
	if err != nil {
		return err
	}
	if err := h.Init(ctx, msg.Owner); err != nil {
		return err
	}
	storeResult(ctx, h)
	return nil
}

type StoreCommand struct {
	dispatcher Dispatcher
}

func NewStoreCommand(dispatcher Dispatcher) *StoreCommand {
	return &StoreCommand{dispatcher: dispatcher}
}

func (c *StoreCommand) Execute(ctx context.Context, msg StoreMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.Resolve(ctx, msg.Name)
	if err != nil {
		return err
	}
	return h.Store(ctx, msg.Credential)
}

type RetrieveCommand struct {
	dispatcher Dispatcher
}

func NewRetrieveCommand(dispatcher Dispatcher) *RetrieveCommand {
	return &RetrieveCommand{dispatcher: dispatcher}
}

func (c *RetrieveCommand) Execute(ctx context.Context, msg RetrieveMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.Resolve(ctx, msg.Name)
	if err != nil {
		return err
	}
	cred, err := h.Retrieve(ctx, msg.Mask, msg.Template)
	if err != nil {
		return err
	}
	storeResult(ctx, cred)
	return nil
}

type RemoveCredCommand struct {
	dispatcher Dispatcher
}

func NewRemoveCredCommand(dispatcher Dispatcher) *RemoveCredCommand {
	return &RemoveCredCommand{dispatcher: dispatcher}
}

func (c *RemoveCredCommand) Execute(ctx context.Context, msg RemoveCredMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.Resolve(ctx, msg.Name)
	if err != nil {
		return err
	}
	return h.RemoveCred(ctx, msg.Mask, msg.Template)
}

type SwitchCommand struct {
	dispatcher Dispatcher
}

func NewSwitchCommand(dispatcher Dispatcher) *SwitchCommand {
	return &SwitchCommand{dispatcher: dispatcher}
}

func (c *SwitchCommand) Execute(ctx context.Context, msg SwitchMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.Resolve(ctx, msg.Name)
	if err != nil {
		return err
	}
	return c.dispatcher.Switch(ctx, h)
}

type MoveCommand struct {
	dispatcher Dispatcher
}

func NewMoveCommand(dispatcher Dispatcher) *MoveCommand {
	return &MoveCommand{dispatcher: dispatcher}
}

func (c *MoveCommand) Execute(ctx context.Context, msg MoveMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	from, err := c.dispatcher.Resolve(ctx, msg.From)
	if err != nil {
		return err
	}
	to, err := c.dispatcher.Resolve(ctx, msg.To)
	if err != nil {
		return err
	}
	return c.dispatcher.Move(ctx, from, to)
}

type CopyCommand struct {
	dispatcher Dispatcher
}

func NewCopyCommand(dispatcher Dispatcher) *CopyCommand {
	return &CopyCommand{dispatcher: dispatcher}
}

func (c *CopyCommand) Execute(ctx context.Context, msg CopyMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	from, err := c.dispatcher.Resolve(ctx, msg.From)
	if err != nil {
		return err
	}
	to, err := c.dispatcher.Resolve(ctx, msg.To)
	if err != nil {
		return err
	}
	if !msg.HasTemplate {
		return c.dispatcher.CopyCache(ctx, from, to)
	}
	copied := 0
	if err := c.dispatcher.CopyCacheMatch(ctx, from, to, msg.Mask, &msg.Template, &copied); err != nil {
		return err
	}
	storeResult(ctx, copied)
	return nil
}

type DestroyCommand struct {
	dispatcher Dispatcher
}

func NewDestroyCommand(dispatcher Dispatcher) *DestroyCommand {
	return &DestroyCommand{dispatcher: dispatcher}
}

func (c *DestroyCommand) Execute(ctx context.Context, msg DestroyMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.Resolve(ctx, msg.Name)
	if err != nil {
		return err
	}
	return h.Destroy(ctx)
}

type SetConfigCommand struct {
	dispatcher Dispatcher
}

func NewSetConfigCommand(dispatcher Dispatcher) *SetConfigCommand {
	return &SetConfigCommand{dispatcher: dispatcher}
}

func (c *SetConfigCommand) Execute(ctx context.Context, msg SetConfigMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: dispatcher is required")
	}
	h, err := c.dispatcher.Resolve(ctx, msg.Name)
	if err != nil {
		return err
	}
	return c.dispatcher.SetConfig(ctx, h, msg.PrincipalOpt, msg.ConfigName, msg.DataOpt)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
