package timing

import "github.com/keel-engine/keel/internal/core/hash"

// Frame lifecycle events, published by the Clock in this order:
// BeginFrame, Update, PostUpdate, then EndFrame after the frame's work.
var (
	EventBeginFrame = hash.Register("BeginFrame")
	EventUpdate     = hash.Register("Update")
	EventPostUpdate = hash.Register("PostUpdate")
	EventEndFrame   = hash.Register("EndFrame")
)

// Frame event payload keys.
var (
	// ParamFrameNumber carries the 1-based frame counter (int64).
	ParamFrameNumber = hash.Register("FrameNumber")
	// ParamTimeStep carries the scaled frame delta in seconds (double).
	ParamTimeStep = hash.Register("TimeStep")
)
