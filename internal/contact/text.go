package contact

// Response messages shown verbatim to the visitor.
const (
	MsgMethodNotAllowed = "Method not allowed"
	MsgMissingFields    = "Missing required fields"
	MsgInvalidEmail     = "Invalid email format"
	MsgInvalidBody      = "Invalid request body"
	MsgReceived         = "Message received successfully. We will get back to you soon!"
	MsgDeliveryFailed   = "Failed to send message"
	MsgInternalError    = "An error occurred while processing your request"
)
