package messaging

import (
	"errors"
	"log"

	"fleetcore/engine"
	"fleetcore/fleet"
	"fleetcore/navgraph"
	"fleetcore/protocol"
	"fleetcore/reservation"
	"fleetcore/robot"
)

// Fleet is the subset of the engine the command handler drives.
type Fleet interface {
	Spawn(v navgraph.VertexID) (robot.View, error)
	AssignTask(id int, dest navgraph.VertexID) (robot.View, error)
	Select(id int, on bool) (robot.View, error)
	Replan(id int) (robot.View, error)
}

// CommandHandler handles inbound protocol messages on the command topic and
// replies with an ack or error on the event topic.
type CommandHandler struct {
	protocol.NoOpHandler

	fleet      Fleet
	pub        Publisher
	stationID  string
	eventTopic string
}

func NewCommandHandler(f Fleet, pub Publisher, stationID, eventTopic string) *CommandHandler {
	return &CommandHandler{
		fleet:      f,
		pub:        pub,
		stationID:  stationID,
		eventTopic: eventTopic,
	}
}

// Ingestor returns an ingestor that feeds this handler messages addressed to
// the station.
func (h *CommandHandler) Ingestor() *protocol.Ingestor {
	return protocol.NewIngestor(h, protocol.StationFilter(h.stationID))
}

func (h *CommandHandler) HandleSpawn(env *protocol.Envelope, p *protocol.Spawn) {
	view, err := h.fleet.Spawn(navgraph.VertexID(p.Vertex))
	h.reply(env, view, err)
}

func (h *CommandHandler) HandleAssign(env *protocol.Envelope, p *protocol.Assign) {
	view, err := h.fleet.AssignTask(p.RobotID, navgraph.VertexID(p.Dest))
	if err != nil && view.ID == 0 {
		view.ID = p.RobotID
	}
	h.reply(env, view, err)
}

func (h *CommandHandler) HandleSelect(env *protocol.Envelope, p *protocol.Select) {
	view, err := h.fleet.Select(p.RobotID, p.Selected)
	if err != nil {
		view.ID = p.RobotID
	}
	h.reply(env, view, err)
}

func (h *CommandHandler) HandleReplan(env *protocol.Envelope, p *protocol.Replan) {
	view, err := h.fleet.Replan(p.RobotID)
	if err != nil {
		view.ID = p.RobotID
	}
	h.reply(env, view, err)
}

func (h *CommandHandler) reply(env *protocol.Envelope, view robot.View, err error) {
	src := protocol.Address{Role: protocol.RoleCore, Station: h.stationID}
	var (
		out  *protocol.Envelope
		berr error
	)
	if err != nil {
		log.Printf("command_handler: %s %s from %s: %v", env.Type, env.ID, env.Src, err)
		out, berr = env.Reply(protocol.TypeError, src, &protocol.Error{
			RobotID: view.ID,
			Code:    ErrorCode(err),
			Detail:  err.Error(),
		})
	} else {
		out, berr = env.Reply(protocol.TypeAck, src, &protocol.Ack{
			RobotID: view.ID,
			Status:  view.Status.String(),
		})
	}
	if berr != nil {
		log.Printf("command_handler: build reply: %v", berr)
		return
	}
	data, berr := out.Encode()
	if berr != nil {
		log.Printf("command_handler: encode reply: %v", berr)
		return
	}
	if perr := h.pub.Publish(h.eventTopic, data); perr != nil {
		log.Printf("command_handler: publish reply to %s: %v", h.eventTopic, perr)
	}
}

// ErrorCode maps a coordination error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, fleet.ErrUnknownRobot):
		return protocol.ErrCodeUnknownRobot
	case errors.Is(err, navgraph.ErrOutOfRange):
		return protocol.ErrCodeOutOfRange
	case errors.Is(err, reservation.ErrConflict):
		return protocol.ErrCodeConflict
	case errors.Is(err, navgraph.ErrNoPath):
		return protocol.ErrCodeNoPath
	case errors.Is(err, engine.ErrNoDestination):
		return protocol.ErrCodeBadRequest
	default:
		return protocol.ErrCodeInternal
	}
}
