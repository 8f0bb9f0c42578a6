package work

import "github.com/keel-engine/keel/internal/core/hash"

// EventWorkItemCompleted is published from Drain, once per finished
// item, on the main goroutine.
var EventWorkItemCompleted = hash.Register("WorkItemCompleted")

// WorkItemCompleted payload keys.
var (
	// ParamItemName carries the name given to Post (string).
	ParamItemName = hash.Register("ItemName")
	// ParamItemID carries the id returned by Post (int64).
	ParamItemID = hash.Register("ItemID")
	// ParamError carries the item's error text (string). Absent on
	// success.
	ParamError = hash.Register("Error")
)
