package mcup

// Client→server request methods.
const (
	methodInitialize    = "initialize"
	methodPing          = "ping"
	methodToolsCall     = "tools/call"
	methodToolsList     = "tools/list"
	methodResourcesRead = "resources/read"
	methodResourcesList = "resources/list"
)

// Notification methods (both directions).
const (
	notifyInitialized         = "notifications/initialized"
	notifyCancelled           = "notifications/cancelled"
	notifyProgress            = "notifications/progress"
	notifyLogMessage          = "notifications/message"
	notifyToolListChanged     = "notifications/tools/list_changed"
	notifyResourceListChanged = "notifications/resources/list_changed"
)
