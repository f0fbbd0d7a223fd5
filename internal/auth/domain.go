package auth

// Claims is the payload of a scheduler request signature.
type Claims struct {
	Iss  string `json:"iss"`
	Sub  string `json:"sub"`  // destination url
	Exp  int64  `json:"exp"`  // expires at
	Nbf  int64  `json:"nbf"`  // not before
	Iat  int64  `json:"iat"`  // issued at
	Jti  string `json:"jti"`  // message id
	Body string `json:"body"` // base64url(sha256(body))
}

const (
	SignatureHeader = "Upstash-Signature"
	Issuer          = "Upstash"
)
