package tokens

import "github.com/golang-jwt/jwt/v5"

// Identity is the account snapshot carried by both token classes.
// PostCount is captured at issuance and is not refreshed until the next login or update.
type Identity struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	PostCount int64  `json:"postCount"`
}

type Claims struct {
	Identity
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken  string `json:"authToken"`
	RefreshToken string `json:"refreshToken"`
}
