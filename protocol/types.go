package protocol

// Message type constants for the fleet protocol.
const (
	// Client -> Core (published on the command topic)
	TypeSpawn  = "fleet.spawn"
	TypeAssign = "fleet.assign"
	TypeSelect = "fleet.select"
	TypeReplan = "fleet.replan"

	// Core -> Client (published on the event topic)
	TypeAck           = "fleet.ack"
	TypeError         = "fleet.error"
	TypeTick          = "fleet.tick"
	TypeTaskCompleted = "fleet.task_completed"
	TypeWarnings      = "fleet.warnings"
)

// Roles for Address.Role.
const (
	RoleClient = "client"
	RoleCore   = "core"
)

// Broadcast is the Dst.Station of messages meant for every listener.
const Broadcast = "*"

// Protocol version.
const Version = 1
