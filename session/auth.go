package session

import (
	gojwt "github.com/golang-jwt/jwt/v5"
)

// display identity claims supplied at admission time
type ParticipantClaims struct {
	UserId   string
	UserName string
}

// ParseParticipantJwtUnverified extracts display identity from a client
// supplied token. The token is not verified: it carries identity, not
// authorization.
func ParseParticipantJwtUnverified(jwt string) (*ParticipantClaims, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(jwt, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := token.Claims.(gojwt.MapClaims)

	participantClaims := &ParticipantClaims{}
	if userId, ok := claims["user_id"].(string); ok {
		participantClaims.UserId = userId
	}
	if userName, ok := claims["user_name"].(string); ok {
		participantClaims.UserName = userName
	}
	return participantClaims, nil
}
