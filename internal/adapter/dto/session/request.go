package session

// CreateSessionRequest opens a new analysis session.
type CreateSessionRequest struct {
	PartnerName *string `json:"partner_name,omitempty" validate:"omitempty,min=1,max=100"`
	PartnerAge  *int    `json:"partner_age,omitempty" validate:"omitempty,gte=18,lte=120"`
}

// SegmentRequest is one transcript segment supplied by the client.
type SegmentRequest struct {
	T0      float64 `json:"t0" validate:"gte=0"`
	T1      float64 `json:"t1" validate:"gtefield=T0"`
	Text    string  `json:"text" validate:"required"`
	Speaker string  `json:"speaker" validate:"required,oneof=me partner"`
}

// ProsodySampleRequest is one prosody frame supplied by the client.
type ProsodySampleRequest struct {
	T     float64  `json:"t" validate:"gte=0"`
	RMS   float64  `json:"rms" validate:"gte=0"`
	Pitch *float64 `json:"pitch,omitempty" validate:"omitempty,gt=0"`
}

// AnalyzeRequest queues the analysis pipeline for a session. Segments may
// be omitted when the session has a recording and server-side
// transcription is enabled.
type AnalyzeRequest struct {
	Segments []SegmentRequest       `json:"segments" validate:"omitempty,dive"`
	Prosody  []ProsodySampleRequest `json:"prosody" validate:"omitempty,dive"`
}
