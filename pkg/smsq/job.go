package smsq

// Job is the JSON payload put on the RabbitMQ queue for sending an SMS.
type Job struct {
	To   string `json:"to"`
	Body string `json:"body"`
	Kind string `json:"kind,omitempty"` // e.g. "otp"
}
