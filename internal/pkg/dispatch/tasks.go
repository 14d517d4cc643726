package dispatch

// Task names routed through the worker endpoint.
const (
	TaskSendEmail = "send-email"
)

// SendEmailPayload is the body of a send-email task.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
