package event

import "github.com/gin-gonic/gin"

// EventHandler is implemented by handlers whose mutating routes are tracked.
type EventHandler interface {
	RegisterRoutesWithEvents(r *gin.RouterGroup, tracker *Tracker)
}

// SetNewData records the resulting entity on the request's event context.
func SetNewData(c *gin.Context, data interface{}, additional map[string]interface{}) {
	if ctx, ok := FromGin(c); ok {
		ctx.NewData = data
		ctx.Additional = additional
	}
}

// SetChange records both sides of an update.
func SetChange(c *gin.Context, old, new interface{}) {
	if ctx, ok := FromGin(c); ok {
		ctx.OldData = old
		ctx.NewData = new
	}
}

// FromGin returns the event context installed by the tracker, if any.
func FromGin(c *gin.Context) (*EventContext, bool) {
	v, exists := c.Get(contextKey)
	if !exists {
		return nil, false
	}
	ctx, ok := v.(*EventContext)
	return ctx, ok
}
