package chandb

// Player global flag bits.
const (
	GlobalFlagServerAdmin uint16 = 0x0001
	GlobalFlagAllowReg    uint16 = 0x0002
	GlobalFlagRegistered  uint16 = 0x0004
)

// Privilege level bits a player can hold within a channel's scope. The
// resolver carries levels through unchanged; these constants only give the
// bits their protocol names.
const (
	PrivChannelAdmin uint16 = 0x0001
	PrivOperator     uint16 = 0x0002
	PrivVoiced       uint16 = 0x0004
	PrivAutoOperator uint16 = 0x0008
	PrivAutoVoiced   uint16 = 0x0010
)

// Registration is the persistent account of a registered player.
type Registration struct {
	ID      uint32
	Name    string
	IsAdmin bool
}

// Player is a connected client. Channel is the channel the player currently
// occupies; it is written by membership operations only. Reg is nil for
// anonymous players.
type Player struct {
	PublicID  uint32
	PrivateID uint32
	Nickname  string

	GlobalFlags uint16
	Reg         *Registration

	Channel *Channel
}

// Registered reports whether the player is backed by a registered account.
func (p *Player) Registered() bool {
	return p.GlobalFlags&GlobalFlagRegistered != 0 && p.Reg != nil
}
