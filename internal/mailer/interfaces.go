package mailer

type Service interface {
	SendWelcomeEmail(toEmail, toName, accountURL string) error
	SendPasswordResetEmail(toEmail, toName, resetURL string) error
}
