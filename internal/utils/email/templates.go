package email

const emailTemplates = `
{{define "verification"}}
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Welcome, {{.FirstName}}!</h2>
    <p>Thanks for signing up. Please confirm your email address to activate your account.</p>
    <p>
      <a href="{{.Link}}" style="background-color: #1a73e8; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">
        Verify my account
      </a>
    </p>
    <p>This link expires shortly. If it has expired, request a new one from the sign-in page.</p>
    <p>If you did not create this account, you can ignore this email.</p>
  </body>
</html>
{{end}}

{{define "password_reset"}}
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Hi {{.FirstName}},</h2>
    <p>We received a request to reset your password. Use the link below to choose a new one.</p>
    <p>
      <a href="{{.Link}}" style="background-color: #1a73e8; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">
        Reset my password
      </a>
    </p>
    <p>This link expires in a few minutes. If you did not request a reset, no action is needed.</p>
  </body>
</html>
{{end}}
`
