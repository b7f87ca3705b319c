package oauth2

// Form field names used by the provider's single access endpoint.
const (
	ParamAccessToken = "access_token"
)

// Provider specific fields of a token response, read with Token.Extra.
const (
	// FieldInstanceURL is the tenant origin, e.g. "https://acme.my.salesforce.com".
	FieldInstanceURL = "instance_url"
	// FieldID is the identity URL of the authenticated user.
	FieldID = "id"
	// FieldIssuedAt is the issuance time in milliseconds since the epoch, sent as a string.
	FieldIssuedAt = "issued_at"
	FieldIDToken  = "id_token"
)

// Provider endpoint paths, relative to the login URL or the instance URL.
const (
	AuthorizePath    = "/services/oauth2/authorize"
	TokenPath        = "/services/oauth2/token"
	SingleAccessPath = "/services/oauth2/singleaccess"
	FrontDoorPath    = "/secur/frontdoor.jsp"
)
