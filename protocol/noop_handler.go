package protocol

// NoOpHandler implements MessageHandler with no-op methods.
// Embed this and override only the methods you need.
type NoOpHandler struct{}

func (NoOpHandler) HandleSpawn(*Envelope, *Spawn)                 {}
func (NoOpHandler) HandleAssign(*Envelope, *Assign)               {}
func (NoOpHandler) HandleSelect(*Envelope, *Select)               {}
func (NoOpHandler) HandleReplan(*Envelope, *Replan)               {}
func (NoOpHandler) HandleAck(*Envelope, *Ack)                     {}
func (NoOpHandler) HandleError(*Envelope, *Error)                 {}
func (NoOpHandler) HandleTick(*Envelope, *Tick)                   {}
func (NoOpHandler) HandleTaskCompleted(*Envelope, *TaskCompleted) {}
func (NoOpHandler) HandleWarnings(*Envelope, *Warnings)           {}

// Compile-time check that NoOpHandler implements MessageHandler.
var _ MessageHandler = NoOpHandler{}
