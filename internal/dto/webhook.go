package dto

// CalWebhookPayload is the envelope delivered by the Cal.com webhook.
type CalWebhookPayload struct {
	TriggerEvent string         `json:"triggerEvent"`
	Payload      CalBookingData `json:"payload"`
}

// CalBookingData carries the booking fields this system consumes.
type CalBookingData struct {
	UID       string                 `json:"uid"`
	Title     string                 `json:"title"`
	EventSlug string                 `json:"type"`
	StartTime string                 `json:"startTime"`
	EndTime   string                 `json:"endTime"`
	Status    string                 `json:"status"`
	Attendees []CalAttendee          `json:"attendees"`
	Responses map[string]interface{} `json:"responses"`
}

// CalAttendee identifies a booking attendee.
type CalAttendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
