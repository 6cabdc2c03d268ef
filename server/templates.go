package server

import (
	"html/template"
	"net/http"
)

// templates holds the parsed page templates. Spec §1 treats HTML
// rendering as an external collaborator — out of scope for the core —
// so unlike the teacher's templates.go (which loads a themeable set of
// files off disk) these are fixed inline templates: just enough to
// drive the login/consent/registration flows the core state machine
// requires.
type templates struct {
	login    *template.Template
	approval *template.Template
	register *template.Template
}

func loadTemplates() (*templates, error) {
	return &templates{
		login:    template.Must(template.New("login").Parse(loginHTML)),
		approval: template.Must(template.New("approval").Parse(approvalHTML)),
		register: template.Must(template.New("register").Parse(registerHTML)),
	}, nil
}

type loginPage struct {
	RedirectURI string
	CSRF        string
	Error       string
}

type approvalPage struct {
	ClientName  string
	LogoURI     string
	Scope       string
	AuthURL     string
	CSRF        string
}

type registerPage struct {
	RedirectURI string
	CSRF        string
	Error       string
}

func (t *templates) renderLogin(w http.ResponseWriter, p loginPage) error {
	return t.login.Execute(w, p)
}

func (t *templates) renderApproval(w http.ResponseWriter, p approvalPage) error {
	return t.approval.Execute(w, p)
}

func (t *templates) renderRegister(w http.ResponseWriter, p registerPage) error {
	return t.register.Execute(w, p)
}

const loginHTML = `<!DOCTYPE html>
<title>Log in</title>
<h1>Log in</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="POST" action="/login?redirect_uri={{.RedirectURI}}">
  <input type="hidden" name="csrf" value="{{.CSRF}}">
  <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
  <label>Username <input type="text" name="username"></label>
  <label>Password <input type="password" name="password"></label>
  <button type="submit">Log in</button>
</form>
<p><a href="/register">Create an account</a></p>`

const approvalHTML = `<!DOCTYPE html>
<title>Grant access</title>
<h1>{{.ClientName}} would like to</h1>
<img src="{{.LogoURI}}" alt="{{.ClientName}}">
<p>Requested scope: {{.Scope}}</p>
<form method="POST" action="{{.AuthURL}}">
  <input type="hidden" name="csrf" value="{{.CSRF}}">
  <button type="submit" name="action" value="allow">Allow</button>
  <button type="submit" name="action" value="deny">Deny</button>
</form>`

const registerHTML = `<!DOCTYPE html>
<title>Create account</title>
<h1>Create account</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="POST" action="/register?redirect_uri={{.RedirectURI}}">
  <input type="hidden" name="csrf" value="{{.CSRF}}">
  <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
  <label>Username <input type="text" name="username"></label>
  <label>Email <input type="email" name="email"></label>
  <label>Password <input type="password" name="password"></label>
  <button type="submit">Create account</button>
</form>`
