package model

// AskRequest is the body sent to /api/search and forwarded to the QA backend
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the success body of the QA backend
type AskResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	TimeTaken string   `json:"time_taken,omitempty"`
}
