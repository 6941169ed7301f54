// Package mailer renders Markdown templates into HTML mail and hands the
// result to a Sender.
//
// A template is a Markdown file with optional YAML frontmatter. The body is
// a text/template executed with the message data; the result is the plain
// text part and, converted by goldmark and wrapped in an html/template
// layout, the HTML part:
//
//	---
//	subject: Reset your password, {{.Name}}
//	---
//	Follow {{.Link}} within the hour.
//
// Layouts live under "layouts/" in the same fs.FS and receive .Content and
// .Subject.
//
// LogSender writes messages to a logger and is meant for development.
// Package resend delivers through the Resend API.
package mailer
