package relay

// transcriptMessage forwards one recognition result to the client
type transcriptMessage struct {
	Transcript string `json:"transcript"`
	IsPartial  bool   `json:"is_partial"`
}

// replyMessage forwards the agent's reply for a finalized utterance
type replyMessage struct {
	Reply string `json:"reply"`
}

// errorMessage is sent once before the connection closes on fatal error
type errorMessage struct {
	Error string `json:"error"`
}
