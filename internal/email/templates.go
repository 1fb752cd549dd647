package email

import (
	"fmt"
	"html"
	"time"
)

// OTPMessage renders the signup verification email.
func OTPMessage(code string, ttl time.Duration) (subject, body string) {
	subject = "Your Interview Genie verification code"
	body = fmt.Sprintf(
		`<p>Your verification code is:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>It expires in %d minutes.</p>`,
		html.EscapeString(code), int(ttl.Minutes()),
	)
	return subject, body
}

// ResetMessage renders the password reset email. link already carries the raw token.
func ResetMessage(link string, ttl time.Duration) (subject, body string) {
	subject = "Reset your Interview Genie password"
	escaped := html.EscapeString(link)
	body = fmt.Sprintf(
		`<p>Click the link below to choose a new password (expires in %d hours):</p><p><a href="%s">%s</a></p><p>If you did not ask for this, you can ignore this email.</p>`,
		int(ttl.Hours()), escaped, escaped,
	)
	return subject, body
}
