// Package tomin implements the session core of the Tomin personal finance
// dashboard gateway: the route-level session gate, credential capture from
// the identity collaborator's callback, and the session object derived from
// the bearer credential.
//
// The gateway sits between the browser and two external collaborators: the
// Tomin backend API (financial data, statement uploads, the notification
// feed) and the identity provider (third-party login, session lookup,
// logout). Subpackages hold the moving parts: middleware/gate for the
// navigation gate, feed for the live update subscription, dashboard for the
// refresh cycle, client and identity for the collaborator clients, and
// gateway for the HTTP composition.
package tomin
