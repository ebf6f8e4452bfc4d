package mail

import (
	"fmt"
	"net/url"
)

// VerificationMessage builds the email carrying the verification link.
func VerificationMessage(to, name, publicURL, token string) Message {
	link := fmt.Sprintf("%s/verify-email?token=%s", publicURL, url.QueryEscape(token))
	return Message{
		To:      to,
		Subject: "Verify your corkboard account",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below:\n\n%s\n\n"+
			"If you did not create an account you can ignore this message.\n", name, link),
	}
}

// PasswordChangedMessage tells the owner their password changed.
func PasswordChangedMessage(to, name string) Message {
	return Message{
		To:      to,
		Subject: "Your corkboard password was changed",
		Body: fmt.Sprintf("Hi %s,\n\nThe password for your account was just changed. "+
			"If this was not you, reset it immediately.\n", name),
	}
}
