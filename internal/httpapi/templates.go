package httpapi

import (
	_ "embed"
	htmltemplate "html/template"
)

//go:embed templates/support_form.tmpl
var supportFormTemplateHTML string

//go:embed templates/admin_login.tmpl
var adminLoginTemplateHTML string

//go:embed templates/admin_dashboard.tmpl
var adminDashboardTemplateHTML string

var (
	supportFormTemplate    = htmltemplate.Must(htmltemplate.New("support_form").Parse(supportFormTemplateHTML))
	adminLoginTemplate     = htmltemplate.Must(htmltemplate.New("admin_login").Parse(adminLoginTemplateHTML))
	adminDashboardTemplate = htmltemplate.Must(htmltemplate.New("admin_dashboard").Parse(adminDashboardTemplateHTML))
)
