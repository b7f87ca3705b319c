package oauth2

// ErrorResponse is the body returned by the token endpoint when it rejects a request.
type ErrorResponse struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SingleAccessResponse is the JSON body of the single-access endpoint. The
// provider has used both key spellings for the one-time URI.
type SingleAccessResponse struct {
	FrontdoorURI      string `json:"frontdoor_uri,omitempty"`
	FrontdoorURICamel string `json:"frontdoorUri,omitempty"`
}

// URI returns whichever of the accepted keys carries a value.
func (r SingleAccessResponse) URI() string {
	if r.FrontdoorURI != "" {
		return r.FrontdoorURI
	}
	return r.FrontdoorURICamel
}
