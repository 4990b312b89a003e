package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ListMeta describes one page of a list response.
type ListMeta struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

type ListEnvelope struct {
	Data any      `json:"data"`
	Meta ListMeta `json:"meta"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
