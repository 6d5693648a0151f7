package main

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	confirmActionDelete = "delete"
	confirmActionClear  = "clear"
)

var confirmActions = []string{confirmActionDelete, confirmActionClear}

// createConfirmationToken signs a short-lived token that authorizes exactly
// one destructive action. reportID is empty for clear.
func (a *App) createConfirmationToken(action, reportID string) (string, error) {
	if !containsString(confirmActions, action) {
		return "", fmt.Errorf("unknown confirmation action %q", action)
	}
	if action == confirmActionDelete && strings.TrimSpace(reportID) == "" {
		return "", fmt.Errorf("delete confirmation requires a report id")
	}
	now := a.now()
	claims := jwt.MapClaims{
		"act": action,
		"rid": reportID,
		"iat": now.Unix(),
		"exp": now.Add(confirmationTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.AppSigningSecret))
}

func (a *App) verifyConfirmationToken(tokenString, action, reportID string) error {
	if strings.TrimSpace(tokenString) == "" {
		return fmt.Errorf("missing confirmation token")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.AppSigningSecret), nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid confirmation token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid claims")
	}
	tokenAction, _ := claims["act"].(string)
	tokenReportID, _ := claims["rid"].(string)
	if tokenAction != action || tokenReportID != reportID {
		return fmt.Errorf("confirmation token does not match action")
	}
	return nil
}
