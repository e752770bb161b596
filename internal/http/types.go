package http

// AnswerRequest is the request body for POST /api/v1/answer and /ask.
type AnswerRequest struct {
	Question string `json:"question"`
}

// AnswerResponse is the response body for a successful answer.
type AnswerResponse struct {
	Answer string `json:"answer"`
}

// HealthResponse is the response body for GET /health and GET /.
type HealthResponse struct {
	Status string `json:"status"`
}

// RebuildResponse describes the state swapped in by a rebuild.
type RebuildResponse struct {
	Version int64  `json:"version"`
	Origin  string `json:"origin"`
	Rows    int    `json:"rows"`
}

// ErrorResponse is returned for failures past request validation. It never
// carries internal error detail.
type ErrorResponse struct {
	Error string `json:"error"`
}
