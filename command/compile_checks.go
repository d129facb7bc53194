package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ResolveMessage]    = (*ResolveCommand)(nil)
	_ gocmd.Commander[NewUniqueMessage]  = (*NewUniqueCommand)(nil)
	_ gocmd.Commander[InitMessage]       = (*InitCommand)(nil)
	_ gocmd.Commander[StoreMessage]      = (*StoreCommand)(nil)
	_ gocmd.Commander[RetrieveMessage]   = (*RetrieveCommand)(nil)
	_ gocmd.Commander[RemoveCredMessage] = (*RemoveCredCommand)(nil)
	_ gocmd.Commander[SwitchMessage]     = (*SwitchCommand)(nil)
	_ gocmd.Commander[MoveMessage]       = (*MoveCommand)(nil)
	_ gocmd.Commander[CopyMessage]       = (*CopyCommand)(nil)
	_ gocmd.Commander[DestroyMessage]    = (*DestroyCommand)(nil)
	_ gocmd.Commander[SetConfigMessage]  = (*SetConfigCommand)(nil)
)
