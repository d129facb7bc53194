package services

import (
	"fmt"

	servicescommand "github.com/goliatone/go-krb5cc/command"
)

// Commands bundles every administrative and credential-access command
// built from a single Dispatcher (typically a *Context).
type Commands struct {
	Resolve    *servicescommand.ResolveCommand
	NewUnique  *servicescommand.NewUniqueCommand
	Init       *servicescommand.InitCommand
	Store      *servicescommand.StoreCommand
	Retrieve   *servicescommand.RetrieveCommand
	RemoveCred *servicescommand.RemoveCredCommand
	Switch     *servicescommand.SwitchCommand
	Move       *servicescommand.MoveCommand
	Copy       *servicescommand.CopyCommand
	Destroy    *servicescommand.DestroyCommand
	SetConfig  *servicescommand.SetConfigCommand
}

// Facade is the public, command-shaped surface over a dispatch
// Context: every administrative and credential operation the core
// supports, wired up once so callers don't construct each command by
// hand.
type Facade struct {
	dispatcher servicescommand.Dispatcher
	commands   Commands
}

// NewFacade builds a Facade over dispatcher, typically a *Context
// returned by Setup or NewContext.
func NewFacade(dispatcher servicescommand.Dispatcher) (*Facade, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("services: dispatcher is required")
	}
	return &Facade{
		dispatcher: dispatcher,
		commands: Commands{
			Resolve:    servicescommand.NewResolveCommand(dispatcher),
			NewUnique:  servicescommand.NewNewUniqueCommand(dispatcher),
			Init:       servicescommand.NewInitCommand(dispatcher),
			Store:      servicescommand.NewStoreCommand(dispatcher),
			Retrieve:   servicescommand.NewRetrieveCommand(dispatcher),
			RemoveCred: servicescommand.NewRemoveCredCommand(dispatcher),
			Switch:     servicescommand.NewSwitchCommand(dispatcher),
			Move:       servicescommand.NewMoveCommand(dispatcher),
			Copy:       servicescommand.NewCopyCommand(dispatcher),
			Destroy:    servicescommand.NewDestroyCommand(dispatcher),
			SetConfig:  servicescommand.NewSetConfigCommand(dispatcher),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Dispatcher() servicescommand.Dispatcher {
	if f == nil {
		return nil
	}
	return f.dispatcher
}
